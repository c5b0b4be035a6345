package model

import (
	"bytes"
	"encoding/json"
)

// Verification states of a view model.
const (
	StatusVerified = "verified"
	StatusPending  = "pending"
)

// PendingTxHash is used when the backend has not reported a transaction hash yet.
const PendingTxHash = "pending-blockchain-connection"

// FarmAttributes is the farm payload each participant contributes to a batch.
// It travels inside RawRecord.Data as a JSON document.
type FarmAttributes struct {
	FarmID              string `json:"farm_id"`
	FarmName            string `json:"farm_name"`
	LocationCoordinates string `json:"location_coordinates"`
	HarvestDate         string `json:"harvest_date"`
	ProductType         string `json:"product_type"`
	FarmingMethod       string `json:"farming_method"`
	Certifications      string `json:"certifications"`
}

// RawRecord is a data record exactly as the backend returns it.  Data may be
// a JSON string holding encoded attributes or the attributes object itself.
type RawRecord struct {
	EventID   ID              `json:"event_id"`
	BatchID   ID              `json:"batch_id"`
	UserID    ID              `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
	TxStatus  json.RawMessage `json:"tx_status,omitempty"`
	TxHash    string          `json:"txhash"`
	UserRole  string          `json:"user_role,omitempty"`
	UserName  string          `json:"user_name,omitempty"`
}

// Verified reports whether the record's tx_status is truthy.  true, non-zero
// numbers, objects and every non-empty string (including "0" and "false")
// count; null, false, 0 and "" do not.
func (r RawRecord) Verified() bool {
	v := bytes.TrimSpace(r.TxStatus)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 't':
		return bytes.Equal(v, []byte("true"))
	case 'f', 'n':
		return false
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return false
		}
		return s != ""
	case '{', '[':
		return true
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return false
	}
	return n != 0
}

// ViewModel is the UI-ready projection of a record within its batch.
type ViewModel struct {
	ID                  string `json:"id"`
	FarmID              string `json:"farm_id"`
	FarmName            string `json:"farm_name"`
	LocationCoordinates string `json:"location_coordinates"`
	HarvestDate         string `json:"harvest_date"`
	ProductType         string `json:"product_type"`
	BatchID             string `json:"batch_id"`
	FarmingMethod       string `json:"farming_method"`
	Certifications      string `json:"certifications"`
	Timestamp           string `json:"timestamp"`
	Status              string `json:"status"`
	TxHash              string `json:"txHash"`
}

// BatchHistoryEntry is a raw record enriched with its author's role and name.
type BatchHistoryEntry struct {
	RawRecord
}

// Batch is the batch header returned by GET /batches/{id}.
type Batch struct {
	BatchID   ID     `json:"batch_id"`
	CreatedBy ID     `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// BatchData is the body of GET /batches/{id}/data.
type BatchData struct {
	Batch Batch       `json:"batch"`
	Data  []RawRecord `json:"data"`
}

// Submission is the body of POST /data.
type Submission struct {
	FarmAttributes
	BatchID string `json:"batch_id"`
	EventID string `json:"event_id,omitempty"`
}

// SubmitAck is the backend acknowledgment of a submission.  Status and TxHash
// may be omitted by the backend.
type SubmitAck struct {
	Status  string `json:"status"`
	TxHash  string `json:"txHash"`
	Message string `json:"message"`
	EventID ID     `json:"event_id,omitempty"`
}
