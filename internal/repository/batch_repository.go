package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// BatchRepo stores batches and the data records appended to them.
type BatchRepo struct{ DB *sql.DB }

func NewBatchRepo(db *sql.DB) *BatchRepo { return &BatchRepo{DB: db} }

// NewRecord is a record about to be appended.  Data is the encoded
// attribute document.
type NewRecord struct {
	EventID string
	BatchID string
	UserID  string
	Data    []byte
	TxHash  string
}

// Create opens a new batch owned by userID.
func (r *BatchRepo) Create(ctx context.Context, userID string) (model.Batch, error) {
	b := model.Batch{
		BatchID:   model.ID(uuid.NewString()),
		CreatedBy: model.ID(userID),
		CreatedAt: time.Now().UTC().Format(timeLayout),
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO batches (batch_id, created_by, created_at) VALUES (?,?,?)",
		b.BatchID.String(), userID, b.CreatedAt)
	if err != nil {
		return model.Batch{}, err
	}
	return b, nil
}

// Get fetches a batch header.
func (r *BatchRepo) Get(ctx context.Context, batchID string) (model.Batch, error) {
	var id, by, at string
	err := r.DB.QueryRowContext(ctx,
		"SELECT batch_id, created_by, created_at FROM batches WHERE batch_id=? LIMIT 1",
		batchID).Scan(&id, &by, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Batch{}, ErrNotFound
	}
	if err != nil {
		return model.Batch{}, err
	}
	return model.Batch{BatchID: model.ID(id), CreatedBy: model.ID(by), CreatedAt: at}, nil
}

// AddRecord appends a verified record to an existing batch.  A reused
// event id yields ErrConflict and an unknown batch ErrNotFound.
func (r *BatchRepo) AddRecord(ctx context.Context, nr NewRecord) (model.RawRecord, error) {
	if _, err := r.Get(ctx, nr.BatchID); err != nil {
		return model.RawRecord{}, err
	}
	if nr.EventID == "" {
		nr.EventID = uuid.NewString()
	}
	at := time.Now().UTC().Format(timeLayout)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO data_records (event_id, batch_id, user_id, data, tx_hash, tx_status, created_at) VALUES (?,?,?,?,?,?,?)",
		nr.EventID, nr.BatchID, nr.UserID, string(nr.Data), nr.TxHash, 1, at)
	if err != nil {
		if isUniqueViolation(err) {
			return model.RawRecord{}, ErrConflict
		}
		return model.RawRecord{}, err
	}
	return rawRecord(nr.EventID, nr.BatchID, nr.UserID, string(nr.Data), nr.TxHash, 1, at), nil
}

// Records lists a batch's records in the order they were appended.
func (r *BatchRepo) Records(ctx context.Context, batchID string) ([]model.RawRecord, error) {
	return r.query(ctx, recordCols+" WHERE batch_id=? ORDER BY seq ASC", batchID)
}

// History lists the records userID contributed, newest first.
func (r *BatchRepo) History(ctx context.Context, userID string, limit, offset int) ([]model.RawRecord, error) {
	return r.query(ctx, recordCols+" WHERE user_id=? ORDER BY seq DESC LIMIT ? OFFSET ?", userID, limit, offset)
}

// RecordByEvent fetches one record by its event id.
func (r *BatchRepo) RecordByEvent(ctx context.Context, eventID string) (model.RawRecord, error) {
	recs, err := r.query(ctx, recordCols+" WHERE event_id=? LIMIT 1", eventID)
	if err != nil {
		return model.RawRecord{}, err
	}
	if len(recs) == 0 {
		return model.RawRecord{}, ErrNotFound
	}
	return recs[0], nil
}

const recordCols = "SELECT event_id, batch_id, user_id, data, tx_hash, tx_status, created_at FROM data_records"

func (r *BatchRepo) query(ctx context.Context, q string, args ...any) ([]model.RawRecord, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.RawRecord
	for rows.Next() {
		var (
			eventID, batchID, userID, data, txHash, at string
			status                                     int
		)
		if err := rows.Scan(&eventID, &batchID, &userID, &data, &txHash, &status, &at); err != nil {
			return nil, err
		}
		out = append(out, rawRecord(eventID, batchID, userID, data, txHash, status, at))
	}
	return out, rows.Err()
}

// rawRecord shapes a row the way the production backend does: data is a
// JSON string holding the attribute document and tx_status is numeric.
func rawRecord(eventID, batchID, userID, data, txHash string, status int, at string) model.RawRecord {
	encoded, _ := json.Marshal(data)
	st, _ := json.Marshal(status)
	return model.RawRecord{
		EventID:   model.ID(eventID),
		BatchID:   model.ID(batchID),
		UserID:    model.ID(userID),
		Data:      encoded,
		CreatedAt: at,
		TxStatus:  st,
		TxHash:    txHash,
	}
}
