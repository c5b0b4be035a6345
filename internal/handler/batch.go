package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/metrics"
	"github.com/iliyamo/sourcetrak/internal/middleware"
	"github.com/iliyamo/sourcetrak/internal/qr"
	"github.com/iliyamo/sourcetrak/internal/record"
	"github.com/iliyamo/sourcetrak/internal/service"
)

// QRArchive stores rendered QR images.  *qr.S3Archive implements it.
type QRArchive interface {
	Put(ctx context.Context, batchID string, png []byte) (string, error)
}

// BatchHandler serves batch pages, their QR codes and share links.
type BatchHandler struct {
	Loader       service.Loader
	Views        *service.Views
	History      *service.HistoryService
	Archive      QRArchive
	PublicOrigin string
}

func NewBatchHandler(loader service.Loader, views *service.Views, history *service.HistoryService, archive QRArchive, origin string) *BatchHandler {
	return &BatchHandler{Loader: loader, Views: views, History: history, Archive: archive, PublicOrigin: origin}
}

func batchParam(c echo.Context) string { return strings.TrimSpace(c.Param("id")) }

// Get: GET /api/batches/:id, the batch as seen by the signed-in user.
// A newer request from the same session supersedes one still loading.
func (h *BatchHandler) Get(c echo.Context) error {
	id := batchParam(c)
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "batch id required", "code": codeValidation})
	}
	store, sid, ok := middleware.CurrentSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	user, _ := store.CurrentUser()

	bv, err := h.Views.For(sid).Load(c.Request().Context(), id, &user)
	if err != nil {
		return writeError(c, err, "Failed to get batch data")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"batch":        bv,
		"explorer_url": record.ExplorerURL(bv.Primary.TxHash),
		"share_url":    qr.BuildShareURL(bv.Primary, h.PublicOrigin),
	})
}

// Dashboard: GET /api/dashboard, the user's history with statistics.
func (h *BatchHandler) Dashboard(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	d, err := h.History.Dashboard(c.Request().Context(), u)
	if err != nil {
		return writeError(c, err, "Failed to get user history")
	}
	return c.JSON(http.StatusOK, d)
}

// Public: GET /batch/:id, the anonymous batch page.
func (h *BatchHandler) Public(c echo.Context) error {
	bv, err := h.Loader.Load(c.Request().Context(), batchParam(c), nil)
	if err != nil {
		return writeError(c, err, "Failed to get batch data")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"batch":        bv,
		"explorer_url": record.ExplorerURL(bv.Primary.TxHash),
	})
}

// QRJSON: GET /batch/:id/qr.json, the payload as shown beside the code.
func (h *BatchHandler) QRJSON(c echo.Context) error {
	p, err := h.payload(c)
	if err != nil {
		return writeError(c, err, "Failed to get batch data")
	}
	b, err := p.Pretty()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encode payload failed"})
	}
	metrics.QRRenders.WithLabelValues("json").Inc()
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, b)
}

// QRPNG: GET /batch/:id/qr.png?size=N, the QR image as a download.
func (h *BatchHandler) QRPNG(c echo.Context) error {
	size := qr.DefaultSize
	if s := c.QueryParam("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < qr.MinSize || n > qr.MaxSize {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "size must be between " + strconv.Itoa(qr.MinSize) + " and " + strconv.Itoa(qr.MaxSize),
				"code":  codeValidation,
			})
		}
		size = n
	}
	p, err := h.payload(c)
	if err != nil {
		return writeError(c, err, "Failed to get batch data")
	}
	png, err := qr.RenderPNG(p, size)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render qr failed"})
	}
	metrics.QRRenders.WithLabelValues("png").Inc()
	if h.Archive != nil && size == qr.DefaultSize {
		go h.archive(p.BatchID, png)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+qr.DownloadName(p.BatchID)+`"`)
	return c.Blob(http.StatusOK, "image/png", png)
}

// Share: GET /batch/:id/share, the link a user copies.
func (h *BatchHandler) Share(c echo.Context) error {
	p, err := h.payload(c)
	if err != nil {
		return writeError(c, err, "Failed to get batch data")
	}
	return c.JSON(http.StatusOK, echo.Map{"share_url": p.ShareableLink, "payload": p})
}

func (h *BatchHandler) payload(c echo.Context) (qr.Payload, error) {
	bv, err := h.Loader.Load(c.Request().Context(), batchParam(c), nil)
	if err != nil {
		return qr.Payload{}, err
	}
	return qr.BuildPayload(bv.Primary, h.PublicOrigin), nil
}

func (h *BatchHandler) archive(batchID string, png []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := h.Archive.Put(ctx, batchID, png); err != nil {
		log.Printf("qr: archive %s: %v", batchID, err)
	}
}
