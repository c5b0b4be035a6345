package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/repository"
)

// DemoHandler implements the backend HTTP contract over SQL so the web
// service and CLI can run without the production backend.  Records are
// marked verified with a transaction hash derived from their payload.
type DemoHandler struct {
	Users      *repository.UserRepo
	Batches    *repository.BatchRepo
	BcryptCost int
}

func NewDemoHandler(u *repository.UserRepo, b *repository.BatchRepo, cost int) *DemoHandler {
	return &DemoHandler{Users: u, Batches: b, BcryptCost: cost}
}

// DemoNetwork names the ledger in blockchain metadata responses.
const DemoNetwork = "sourcetrak-demo"

type demoUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func toDemoUser(u repository.User) demoUser { return demoUser{ID: u.ID, Name: u.Name, Role: u.Role} }

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

func demoErr(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// actingUser resolves the user-id header.
func (h *DemoHandler) actingUser(c echo.Context) (repository.User, error) {
	id := strings.TrimSpace(c.Request().Header.Get(apiclient.UserIDHeader))
	if id == "" {
		return repository.User{}, repository.ErrNotFound
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	return h.Users.GetByID(ctx, id)
}

// Login: POST /login.
func (h *DemoHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return demoErr(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return demoErr(c, http.StatusUnauthorized, "Invalid email or password")
		}
		return demoErr(c, http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toDemoUser(u)})
}

// Logout: POST /logout.  Sessions are client-side; this only acknowledges.
func (h *DemoHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

// CreateUser: POST /users.
func (h *DemoHandler) CreateUser(c echo.Context) error {
	var req model.NewUser
	if err := c.Bind(&req); err != nil {
		return demoErr(c, http.StatusBadRequest, "invalid body")
	}
	role, ok := model.ParseRole(string(req.Role))
	if !ok {
		return demoErr(c, http.StatusBadRequest, "Invalid role")
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return demoErr(c, http.StatusBadRequest, "name, email and password are required")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, string(role), h.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return demoErr(c, http.StatusConflict, "Email already registered")
		}
		return demoErr(c, http.StatusInternalServerError, "create user failed")
	}
	return c.JSON(http.StatusCreated, toDemoUser(u))
}

// GetUser: GET /users/:id.
func (h *DemoHandler) GetUser(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return demoErr(c, http.StatusNotFound, "User not found")
		}
		return demoErr(c, http.StatusInternalServerError, "get user failed")
	}
	return c.JSON(http.StatusOK, toDemoUser(u))
}

// CreateBatch: POST /batches.
func (h *DemoHandler) CreateBatch(c echo.Context) error {
	u, err := h.actingUser(c)
	if err != nil {
		return demoErr(c, http.StatusUnauthorized, "unknown user")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	b, err := h.Batches.Create(ctx, u.ID)
	if err != nil {
		return demoErr(c, http.StatusInternalServerError, "create batch failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"batch_id": b.BatchID})
}

// GetBatch: GET /batches/:id.
func (h *DemoHandler) GetBatch(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	b, err := h.Batches.Get(ctx, c.Param("id"))
	if err != nil {
		return h.batchErr(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// GetBatchData: GET /batches/:id/data.
func (h *DemoHandler) GetBatchData(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	b, err := h.Batches.Get(ctx, c.Param("id"))
	if err != nil {
		return h.batchErr(c, err)
	}
	recs, err := h.Batches.Records(ctx, b.BatchID.String())
	if err != nil {
		return demoErr(c, http.StatusInternalServerError, "get batch data failed")
	}
	if recs == nil {
		recs = []model.RawRecord{}
	}
	return c.JSON(http.StatusOK, model.BatchData{Batch: b, Data: recs})
}

type demoTx struct {
	EventID   string `json:"event_id"`
	TxHash    string `json:"tx_hash"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// GetBatchBlockchain: GET /batches/:id/blockchain.
func (h *DemoHandler) GetBatchBlockchain(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	b, err := h.Batches.Get(ctx, c.Param("id"))
	if err != nil {
		return h.batchErr(c, err)
	}
	recs, err := h.Batches.Records(ctx, b.BatchID.String())
	if err != nil {
		return demoErr(c, http.StatusInternalServerError, "get blockchain data failed")
	}
	txs := make([]demoTx, 0, len(recs))
	for _, r := range recs {
		txs = append(txs, demoTx{EventID: r.EventID.String(), TxHash: r.TxHash, Status: model.StatusVerified, Timestamp: r.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"batch_id":     b.BatchID,
		"network":      DemoNetwork,
		"record_count": len(recs),
		"transactions": txs,
	})
}

// History: GET /batches/history?page&page_size.
func (h *DemoHandler) History(c echo.Context) error {
	u, err := h.actingUser(c)
	if err != nil {
		return demoErr(c, http.StatusUnauthorized, "unknown user")
	}
	page := queryInt(c, "page", 1, 1, 1<<20)
	size := queryInt(c, "page_size", 10, 1, 500)
	ctx, cancel := dbCtx(c)
	defer cancel()
	recs, err := h.Batches.History(ctx, u.ID, size, (page-1)*size)
	if err != nil {
		return demoErr(c, http.StatusInternalServerError, "Failed to get user history")
	}
	for i := range recs {
		recs[i].UserRole = u.Role
		recs[i].UserName = u.Name
	}
	if recs == nil {
		recs = []model.RawRecord{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": recs, "page": page, "page_size": size})
}

// SubmitData: POST /data.
func (h *DemoHandler) SubmitData(c echo.Context) error {
	u, err := h.actingUser(c)
	if err != nil {
		return demoErr(c, http.StatusUnauthorized, "unknown user")
	}
	var req model.Submission
	if err := c.Bind(&req); err != nil {
		return demoErr(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.BatchID) == "" {
		return demoErr(c, http.StatusBadRequest, "batch_id is required")
	}
	data, err := json.Marshal(req.FarmAttributes)
	if err != nil {
		return demoErr(c, http.StatusBadRequest, "invalid attributes")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	rec, err := h.Batches.AddRecord(ctx, repository.NewRecord{
		EventID: req.EventID,
		BatchID: req.BatchID,
		UserID:  u.ID,
		Data:    data,
		TxHash:  demoTxHash(req.BatchID, req.EventID, data),
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return demoErr(c, http.StatusNotFound, "Batch not found")
	case errors.Is(err, repository.ErrConflict):
		return demoErr(c, http.StatusConflict, "Event already recorded")
	case err != nil:
		return demoErr(c, http.StatusInternalServerError, "Data submission failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":   model.StatusVerified,
		"txHash":   rec.TxHash,
		"message":  "Data submitted successfully",
		"event_id": rec.EventID,
	})
}

// GetDataByEvent: GET /data/event/:id.
func (h *DemoHandler) GetDataByEvent(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	rec, err := h.Batches.RecordByEvent(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return demoErr(c, http.StatusNotFound, "Record not found")
		}
		return demoErr(c, http.StatusInternalServerError, "Failed to get data by event ID")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *DemoHandler) batchErr(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return demoErr(c, http.StatusNotFound, "Batch not found")
	}
	return demoErr(c, http.StatusInternalServerError, "Failed to get batch")
}

// demoTxHash fabricates a stable transaction hash for a record.
func demoTxHash(batchID, eventID string, data []byte) string {
	sum := sha256.New()
	sum.Write([]byte(batchID))
	sum.Write([]byte{0})
	sum.Write([]byte(eventID))
	sum.Write([]byte{0})
	sum.Write(data)
	return "0x" + hex.EncodeToString(sum.Sum(nil))
}

func queryInt(c echo.Context, name string, def, lo, hi int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return min(max(n, lo), hi)
}
