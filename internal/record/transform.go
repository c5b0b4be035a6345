// Package record turns backend batch payloads into the view models and
// batch histories the rest of the application works with.  Nothing here
// performs I/O.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/sourcetrak/internal/model"
)

var (
	// ErrParse means a record's data field is neither an encoded JSON string
	// nor a JSON object.
	ErrParse = errors.New("unparseable record payload")
	// ErrEmptyBatch means the batch exists but has no data records.
	ErrEmptyBatch = errors.New("batch has no data entries")
)

// ParseAttributes decodes a record's data field.  The backend sends it
// either as a string containing JSON or as the object itself.
func ParseAttributes(data json.RawMessage) (model.FarmAttributes, error) {
	var attrs model.FarmAttributes
	b := bytes.TrimSpace(data)
	if len(b) == 0 {
		return attrs, ErrParse
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return attrs, fmt.Errorf("%w: %v", ErrParse, err)
		}
		b = bytes.TrimSpace([]byte(s))
	}
	if len(b) == 0 || b[0] != '{' {
		return attrs, ErrParse
	}
	if err := json.Unmarshal(b, &attrs); err != nil {
		return attrs, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return attrs, nil
}

// ToViewModel projects a record of batchID into a view model.
func ToViewModel(batchID string, rec model.RawRecord) (model.ViewModel, error) {
	attrs, err := ParseAttributes(rec.Data)
	if err != nil {
		return model.ViewModel{}, err
	}
	status := model.StatusPending
	if rec.Verified() {
		status = model.StatusVerified
	}
	return model.ViewModel{
		ID:                  rec.EventID.String(),
		FarmID:              attrs.FarmID,
		FarmName:            attrs.FarmName,
		LocationCoordinates: attrs.LocationCoordinates,
		HarvestDate:         attrs.HarvestDate,
		ProductType:         attrs.ProductType,
		BatchID:             batchID,
		FarmingMethod:       attrs.FarmingMethod,
		Certifications:      attrs.Certifications,
		Timestamp:           rec.CreatedAt,
		Status:              status,
		TxHash:              rec.TxHash,
	}, nil
}

// Primary returns the view model of the first record, which carries the
// batch's headline attributes.  A batch without records is ErrEmptyBatch.
func Primary(bd model.BatchData) (model.ViewModel, error) {
	if len(bd.Data) == 0 {
		return model.ViewModel{}, ErrEmptyBatch
	}
	batchID := bd.Batch.BatchID.String()
	if batchID == "" {
		batchID = bd.Data[0].BatchID.String()
	}
	return ToViewModel(batchID, bd.Data[0])
}

// RoleInfo is what a RoleResolver knows about a user.
type RoleInfo struct {
	Role string
	Name string
}

// RoleResolver looks up a user's role.  ok=false means the lookup failed or
// the user is unknown.
type RoleResolver func(userID model.ID) (info RoleInfo, ok bool)

// ToBatchHistory enriches every record with its author's role.  The result
// always has one entry per record; unresolvable authors get UnknownRole.
func ToBatchHistory(records []model.RawRecord, resolve RoleResolver) []model.BatchHistoryEntry {
	out := make([]model.BatchHistoryEntry, len(records))
	for i, rec := range records {
		out[i] = model.BatchHistoryEntry{RawRecord: rec}
		if rec.UserRole != "" {
			continue
		}
		info, ok := RoleInfo{}, false
		if resolve != nil {
			info, ok = resolve(rec.UserID)
		}
		if !ok || info.Role == "" {
			out[i].UserRole = model.UnknownRole
			out[i].UserName = ""
			continue
		}
		out[i].UserRole = info.Role
		out[i].UserName = info.Name
	}
	return out
}

// CanUserAddData reports whether user may contribute to the batch described
// by history.  Farmers only originate batches.  Every other participant may
// contribute once per batch.
func CanUserAddData(user *model.User, history []model.BatchHistoryEntry) bool {
	if user == nil {
		return false
	}
	switch user.Role {
	case model.RoleProducer, model.RoleLogistics, model.RoleRetailer:
	default:
		return false
	}
	for _, h := range history {
		if h.UserID == user.ID {
			return false
		}
	}
	return true
}
