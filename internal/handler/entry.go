package handler

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sourcetrak/internal/entry"
	"github.com/iliyamo/sourcetrak/internal/metrics"
	"github.com/iliyamo/sourcetrak/internal/middleware"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/qr"
	"github.com/iliyamo/sourcetrak/internal/queue"
	"github.com/iliyamo/sourcetrak/internal/record"
	"github.com/iliyamo/sourcetrak/internal/service"
)

// EntryPublisher announces accepted entries.  *service.EventPublisher
// implements it.
type EntryPublisher interface {
	PublishEntrySubmitted(ctx context.Context, ev queue.EntrySubmittedEvent) error
}

// EntryHandler runs the entry submission flow for a session.  A flow that
// failed stays attached to its session so that a retry reuses the batch
// it already created.  Adding to an existing batch is refused unless the
// user may contribute to it.
type EntryHandler struct {
	API          entry.API
	Batches      service.BatchRecords
	History      *service.HistoryService
	Events       EntryPublisher
	RDB          *redis.Client
	CachePrefix  string
	PublicOrigin string

	mu    sync.Mutex
	flows map[string]*entry.Flow
}

func NewEntryHandler(api entry.API, batches service.BatchRecords, history *service.HistoryService, events EntryPublisher, rdb *redis.Client, cachePrefix, origin string) *EntryHandler {
	return &EntryHandler{
		API:          api,
		Batches:      batches,
		History:      history,
		Events:       events,
		RDB:          rdb,
		CachePrefix:  cachePrefix,
		PublicOrigin: origin,
		flows:        map[string]*entry.Flow{},
	}
}

type entryReq struct {
	BatchID             string `json:"batch_id"`
	FarmName            string `json:"farm_name"`
	LocationCoordinates string `json:"location_coordinates"`
	HarvestDate         string `json:"harvest_date"`
	ProductType         string `json:"product_type"`
	FarmingMethod       string `json:"farming_method"`
	Certifications      string `json:"certifications"`
}

func (r entryReq) fields() [][2]string {
	return [][2]string{
		{entry.FieldFarmName, r.FarmName},
		{entry.FieldLocationCoordinates, r.LocationCoordinates},
		{entry.FieldHarvestDate, r.HarvestDate},
		{entry.FieldProductType, r.ProductType},
		{entry.FieldFarmingMethod, r.FarmingMethod},
		{entry.FieldCertifications, r.Certifications},
	}
}

// Options lists the choices offered by the entry form.
func (h *EntryHandler) Options(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"farming_methods": entry.FarmingMethods,
		"certifications":  entry.Certifications,
	})
}

// Submit: POST /api/entries.
func (h *EntryHandler) Submit(c echo.Context) error {
	var req entryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	store, sid, ok := middleware.CurrentSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	user, _ := store.CurrentUser()

	if req.BatchID != "" && h.Batches != nil {
		if err := service.CheckEligible(c.Request().Context(), h.Batches, req.BatchID, user); err != nil {
			return writeError(c, err, "Failed to get batch data")
		}
	}

	flow := h.flowFor(sid, user, req.BatchID)
	for _, f := range req.fields() {
		if err := flow.Set(f[0], f[1]); err != nil {
			return writeError(c, err, "")
		}
	}

	vm, err := flow.Submit(c.Request().Context())
	metrics.Submissions.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		if flow.State() == entry.StateFailed && flow.Message() != "" {
			status, code := classify(err)
			return c.JSON(status, echo.Map{"error": flow.Message(), "code": code})
		}
		return writeError(c, err, "")
	}
	h.drop(sid)
	h.afterSubmit(user, vm)

	return c.JSON(http.StatusCreated, echo.Map{
		"entry":        vm,
		"explorer_url": record.ExplorerURL(vm.TxHash),
		"share_url":    qr.BuildShareURL(vm, h.PublicOrigin),
	})
}

// Reset: POST /api/entries/reset discards the session's pending entry.
func (h *EntryHandler) Reset(c echo.Context) error {
	_, sid, ok := middleware.CurrentSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	h.mu.Lock()
	flow := h.flows[sid]
	h.mu.Unlock()
	if flow != nil {
		if err := flow.Cancel(); err != nil {
			return writeError(c, err, "")
		}
	}
	h.drop(sid)
	return c.NoContent(http.StatusNoContent)
}

// flowFor returns the session's pending flow when it targets the same
// batch, otherwise a fresh one.
func (h *EntryHandler) flowFor(sid string, user model.User, batchID string) *entry.Flow {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.flows[sid]; ok && f.TargetBatch() == batchID && f.State() != entry.StateSucceeded {
		return f
	}
	f := entry.NewFlow(h.API, user, batchID)
	h.flows[sid] = f
	return f
}

// Forget discards any pending flow of the session sid.
func (h *EntryHandler) Forget(sid string) { h.drop(sid) }

func (h *EntryHandler) drop(sid string) {
	h.mu.Lock()
	delete(h.flows, sid)
	h.mu.Unlock()
}

// afterSubmit runs the side effects of an accepted entry.  None of them
// can fail the submission.
func (h *EntryHandler) afterSubmit(user model.User, vm model.ViewModel) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if h.History != nil {
		h.History.Remember(ctx, user, vm)
	}
	if err := middleware.InvalidatePath(ctx, h.RDB, h.CachePrefix, "/batch/"+vm.BatchID); err != nil {
		log.Printf("entry: invalidate cache for batch %s: %v", vm.BatchID, err)
	}
	if h.Events != nil {
		ev := queue.EntrySubmittedEvent{
			EventID:     vm.ID,
			BatchID:     vm.BatchID,
			UserID:      user.ID.String(),
			UserRole:    string(user.Role),
			FarmName:    vm.FarmName,
			ProductType: vm.ProductType,
			HarvestDate: vm.HarvestDate,
			Status:      vm.Status,
			TxHash:      vm.TxHash,
			SubmittedAt: vm.Timestamp,
		}
		go func() {
			pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pcancel()
			_ = h.Events.PublishEntrySubmitted(pctx, ev)
		}()
	}
}
