package service

import (
	"context"
	"errors"
	"log"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/record"
)

// DefaultPageSize is how many history records a dashboard shows.
const DefaultPageSize = 100

// HistoryAPI is the part of the backend client the dashboard needs.
type HistoryAPI interface {
	GetHistory(ctx context.Context, userID model.ID, page, pageSize int) ([]model.RawRecord, error)
}

// EntryStore is the local cache of submitted entries.
type EntryStore interface {
	Save(ctx context.Context, userID string, vm model.ViewModel) error
	List(ctx context.Context, userID string) ([]model.ViewModel, error)
}

// Dashboard is a user's contribution history with its summary counters.
// Offline is set when the backend was unreachable and Entries come from
// the local cache.
type Dashboard struct {
	Entries []model.ViewModel `json:"entries"`
	Stats   record.Stats      `json:"stats"`
	Offline bool              `json:"offline"`
}

// HistoryService builds dashboards.  cache may be nil.
type HistoryService struct {
	api      HistoryAPI
	cache    EntryStore
	PageSize int
}

func NewHistoryService(api HistoryAPI, cache EntryStore) *HistoryService {
	return &HistoryService{api: api, cache: cache, PageSize: DefaultPageSize}
}

// Dashboard lists the records user contributed.  Records whose payload
// cannot be parsed are left out.  When the backend cannot be reached the
// local cache is used instead.
func (h *HistoryService) Dashboard(ctx context.Context, user model.User) (Dashboard, error) {
	recs, err := h.api.GetHistory(ctx, user.ID, 1, h.PageSize)
	if err != nil {
		if errors.Is(err, apiclient.ErrNetwork) && h.cache != nil {
			cached, cerr := h.cache.List(ctx, user.ID.String())
			if cerr != nil {
				log.Printf("history: read entry cache: %v", cerr)
				return Dashboard{}, err
			}
			return Dashboard{Entries: cached, Stats: record.Summarize(cached), Offline: true}, nil
		}
		return Dashboard{}, err
	}
	entries := make([]model.ViewModel, 0, len(recs))
	for _, rec := range recs {
		vm, err := record.ToViewModel(rec.BatchID.String(), rec)
		if err != nil {
			log.Printf("history: skipping record %s: %v", rec.EventID, err)
			continue
		}
		entries = append(entries, vm)
	}
	return Dashboard{Entries: entries, Stats: record.Summarize(entries)}, nil
}

// Remember stores a freshly submitted entry in the local cache,
// best-effort.
func (h *HistoryService) Remember(ctx context.Context, user model.User, vm model.ViewModel) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Save(ctx, user.ID.String(), vm); err != nil {
		log.Printf("history: cache entry %s: %v", vm.ID, err)
	}
}
