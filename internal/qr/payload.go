// Package qr builds the payload encoded into batch QR codes, renders it as
// an image and shares the batch link.
package qr

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// PayloadType tags QR payloads produced by this product.
const PayloadType = "sourcetrak_batch"

// Payload is the document encoded in a batch QR code.  Field order is the
// serialized key order; the displayed JSON and the QR content are both
// produced from this struct so they always agree.
type Payload struct {
	Type                string `json:"type"`
	ShareableLink       string `json:"shareable_link"`
	FarmID              string `json:"farm_id"`
	FarmName            string `json:"farm_name"`
	LocationCoordinates string `json:"location_coordinates"`
	HarvestDate         string `json:"harvest_date"`
	ProductType         string `json:"product_type"`
	BatchID             string `json:"batch_id"`
	FarmingMethod       string `json:"farming_method"`
	Certifications      string `json:"certifications"`
	Timestamp           string `json:"timestamp"`
	TxHash              string `json:"txHash"`
}

// BuildShareURL returns the public batch page for vm: origin + /batch/ + id.
func BuildShareURL(vm model.ViewModel, origin string) string {
	return strings.TrimRight(origin, "/") + "/batch/" + url.PathEscape(vm.BatchID)
}

// BuildPayload assembles the QR payload for vm.
func BuildPayload(vm model.ViewModel, origin string) Payload {
	return Payload{
		Type:                PayloadType,
		ShareableLink:       BuildShareURL(vm, origin),
		FarmID:              vm.FarmID,
		FarmName:            vm.FarmName,
		LocationCoordinates: vm.LocationCoordinates,
		HarvestDate:         vm.HarvestDate,
		ProductType:         vm.ProductType,
		BatchID:             vm.BatchID,
		FarmingMethod:       vm.FarmingMethod,
		Certifications:      vm.Certifications,
		Timestamp:           vm.Timestamp,
		TxHash:              vm.TxHash,
	}
}

// Encode is the compact JSON placed in the QR image.
func (p Payload) Encode() ([]byte, error) {
	return marshal(p, "")
}

// Pretty is the same JSON indented by two spaces, for display and printing.
func (p Payload) Pretty() ([]byte, error) {
	return marshal(p, "  ")
}

// marshal disables HTML escaping so links read the same in both renderings.
func marshal(p Payload, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DownloadName is the file name offered when saving a batch QR image.
func DownloadName(batchID string) string {
	return "sourcetrak-qr-" + batchID + ".png"
}
