package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/sourcetrak/internal/metrics"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/record"
)

// ErrSuperseded is returned by View.Load when a newer load on the same view
// started before this one finished.  Its result has been discarded.
var ErrSuperseded = errors.New("batch load superseded")

// BatchAPI is the part of the backend client a batch load needs.
type BatchAPI interface {
	GetBatchData(ctx context.Context, batchID string) (model.BatchData, error)
	GetBatchBlockchain(ctx context.Context, batchID string) (json.RawMessage, error)
}

// UserLookup resolves a record author.  *UserDirectory implements it.
type UserLookup interface {
	Lookup(ctx context.Context, id model.ID) (model.User, error)
}

// BatchView is everything the batch page shows.
type BatchView struct {
	Primary    model.ViewModel           `json:"primary"`
	History    []model.BatchHistoryEntry `json:"history"`
	CanAddData bool                      `json:"can_add_data"`
	Ledger     json.RawMessage           `json:"ledger,omitempty"`
}

// BatchLoader fetches a batch and enriches its history.
type BatchLoader struct {
	api   BatchAPI
	users UserLookup
	// LookupTimeout bounds each role lookup.
	LookupTimeout time.Duration
	// WithLedger also fetches ledger metadata, best-effort.
	WithLedger bool
}

func NewBatchLoader(api BatchAPI, users UserLookup) *BatchLoader {
	return &BatchLoader{api: api, users: users, LookupTimeout: 5 * time.Second, WithLedger: true}
}

// Load builds the view of batchID for viewer (nil when anonymous).  Fetch
// failures keep the client's error kinds; a batch without records is
// record.ErrEmptyBatch.  Role lookups run concurrently and their failures
// only mark the affected entries as unknown.
func (l *BatchLoader) Load(ctx context.Context, batchID string, viewer *model.User) (BatchView, error) {
	bd, err := l.api.GetBatchData(ctx, batchID)
	if err != nil {
		metrics.BatchLoads.WithLabelValues(metrics.Failed).Inc()
		return BatchView{}, err
	}
	primary, err := record.Primary(bd)
	if err != nil {
		metrics.BatchLoads.WithLabelValues(metrics.Failed).Inc()
		return BatchView{}, err
	}

	var (
		wg     sync.WaitGroup
		roles  map[model.ID]record.RoleInfo
		ledger json.RawMessage
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		roles = l.resolveRoles(ctx, bd.Data)
	}()
	if l.WithLedger {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := l.api.GetBatchBlockchain(ctx, batchID)
			if err != nil {
				log.Printf("batch-loader: ledger metadata for %s: %v", batchID, err)
				return
			}
			ledger = raw
		}()
	}
	wg.Wait()

	history := record.ToBatchHistory(bd.Data, func(id model.ID) (record.RoleInfo, bool) {
		info, ok := roles[id]
		return info, ok
	})
	metrics.BatchLoads.WithLabelValues(metrics.OK).Inc()
	return BatchView{
		Primary:    primary,
		History:    history,
		CanAddData: record.CanUserAddData(viewer, history),
		Ledger:     ledger,
	}, nil
}

// resolveRoles looks up every distinct author whose record lacks a role.
// Each lookup is independent; failed ones are simply absent from the map.
func (l *BatchLoader) resolveRoles(ctx context.Context, recs []model.RawRecord) map[model.ID]record.RoleInfo {
	pending := map[model.ID]bool{}
	for _, r := range recs {
		if r.UserRole == "" && r.UserID != "" {
			pending[r.UserID] = true
		}
	}
	out := make(map[model.ID]record.RoleInfo, len(pending))
	if l.users == nil || len(pending) == 0 {
		return out
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for id := range pending {
		wg.Add(1)
		go func(id model.ID) {
			defer wg.Done()
			lctx := ctx
			if l.LookupTimeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(ctx, l.LookupTimeout)
				defer cancel()
			}
			u, err := l.users.Lookup(lctx, id)
			if err != nil || u.Role == "" {
				metrics.RoleLookupFailures.Inc()
				log.Printf("batch-loader: role lookup for user %s: %v", id, err)
				return
			}
			mu.Lock()
			out[id] = record.RoleInfo{Role: string(u.Role), Name: u.Name}
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

// Loader is what a View wraps.
type Loader interface {
	Load(ctx context.Context, batchID string, viewer *model.User) (BatchView, error)
}

// View is one screen's worth of batch loading.  Starting a new load
// supersedes any load still in flight: the older one returns
// ErrSuperseded instead of its result.
type View struct {
	loader Loader
	gen    atomic.Uint64
}

func NewView(l Loader) *View { return &View{loader: l} }

func (v *View) Load(ctx context.Context, batchID string, viewer *model.User) (BatchView, error) {
	g := v.gen.Add(1)
	bv, err := v.loader.Load(ctx, batchID, viewer)
	if v.gen.Load() != g {
		return BatchView{}, ErrSuperseded
	}
	return bv, err
}

// Views hands out one View per session.  Views idle for longer than ttl are
// dropped the next time the map is swept.
type Views struct {
	loader Loader
	ttl    time.Duration

	mu    sync.Mutex
	views map[string]*viewEntry
}

type viewEntry struct {
	view *View
	used time.Time
}

func NewViews(l Loader, ttl time.Duration) *Views {
	return &Views{loader: l, ttl: ttl, views: map[string]*viewEntry{}}
}

// For returns the View of session sid, creating it on first use.
func (vs *Views) For(sid string) *View {
	now := time.Now()
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if len(vs.views) >= 1024 {
		for k, e := range vs.views {
			if now.Sub(e.used) > vs.ttl {
				delete(vs.views, k)
			}
		}
	}
	e, ok := vs.views[sid]
	if !ok {
		e = &viewEntry{view: NewView(vs.loader)}
		vs.views[sid] = e
	}
	e.used = now
	return e.view
}

// Forget drops the View of session sid.
func (vs *Views) Forget(sid string) {
	vs.mu.Lock()
	delete(vs.views, sid)
	vs.mu.Unlock()
}
