package service

import (
	"context"
	"errors"

	"github.com/iliyamo/sourcetrak/internal/model"
	"github.com/iliyamo/sourcetrak/internal/record"
)

// ErrNotEligible is returned when a user may not add data to a batch.
var ErrNotEligible = errors.New("you cannot add data to this batch")

// BatchRecords is the part of the backend client an eligibility check needs.
type BatchRecords interface {
	GetBatchData(ctx context.Context, batchID string) (model.BatchData, error)
}

// CheckEligible fetches batchID and reports ErrNotEligible when user may
// not contribute to it.  Only author ids matter, so roles are not resolved.
// Fetch errors keep the client's error kinds.
func CheckEligible(ctx context.Context, api BatchRecords, batchID string, user model.User) error {
	bd, err := api.GetBatchData(ctx, batchID)
	if err != nil {
		return err
	}
	if !record.CanUserAddData(&user, record.ToBatchHistory(bd.Data, nil)) {
		return ErrNotEligible
	}
	return nil
}
