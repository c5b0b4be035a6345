// Package entry implements the farm data entry form and the submission flow
// that resolves the target batch and sends the record to the backend.
package entry

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// Form field names, as used by the web and CLI front-ends.
const (
	FieldFarmName            = "farm_name"
	FieldLocationCoordinates = "location_coordinates"
	FieldHarvestDate         = "harvest_date"
	FieldProductType         = "product_type"
	FieldFarmingMethod       = "farming_method"
	FieldCertifications      = "certifications"
)

// FarmingMethods are the options offered for farming_method (stored lower-case).
var FarmingMethods = []string{
	"Organic", "Conventional", "Hydroponic", "Greenhouse", "Backyard",
	"Field", "Aquaponics", "Permaculture", "Biodynamic", "Regenerative",
}

// Certifications are the options offered for certifications.
var Certifications = []string{
	"EU Organic", "USDA Organic", "Fair Trade", "Rainforest Alliance", "UTZ Certified",
	"GlobalGAP", "ISO 22000", "HACCP", "Kosher", "Halal", "Non-GMO Project", "None",
}

// IDFunc generates a unique identifier.
type IDFunc func() string

// NewUUID returns a random v4 UUID string.
func NewUUID() string { return uuid.NewString() }

// Form is an immutable snapshot of the entry form.  Edits return a new Form.
// FarmID, BatchID and EventID are generated, never typed by the user.
type Form struct {
	FarmID              string `json:"farm_id"`
	FarmName            string `json:"farm_name"`
	LocationCoordinates string `json:"location_coordinates"`
	HarvestDate         string `json:"harvest_date"`
	ProductType         string `json:"product_type"`
	BatchID             string `json:"batch_id"`
	FarmingMethod       string `json:"farming_method"`
	Certifications      string `json:"certifications"`
	EventID             string `json:"event_id"`
}

// NewForm returns a blank form with fresh identifiers.
func NewForm(ids IDFunc) Form {
	if ids == nil {
		ids = NewUUID
	}
	return Form{FarmID: ids(), BatchID: ids(), EventID: ids()}
}

// With returns a copy of f with one user-editable field set.
func (f Form) With(field, value string) (Form, error) {
	switch field {
	case FieldFarmName:
		f.FarmName = value
	case FieldLocationCoordinates:
		f.LocationCoordinates = value
	case FieldHarvestDate:
		f.HarvestDate = value
	case FieldProductType:
		f.ProductType = value
	case FieldFarmingMethod:
		f.FarmingMethod = strings.ToLower(value)
	case FieldCertifications:
		f.Certifications = value
	default:
		return f, fmt.Errorf("unknown or read-only field %q", field)
	}
	return f, nil
}

// Attributes is the farm payload the form describes.
func (f Form) Attributes() model.FarmAttributes {
	return model.FarmAttributes{
		FarmID:              f.FarmID,
		FarmName:            strings.TrimSpace(f.FarmName),
		LocationCoordinates: strings.TrimSpace(f.LocationCoordinates),
		HarvestDate:         strings.TrimSpace(f.HarvestDate),
		ProductType:         strings.TrimSpace(f.ProductType),
		FarmingMethod:       strings.TrimSpace(f.FarmingMethod),
		Certifications:      strings.TrimSpace(f.Certifications),
	}
}
