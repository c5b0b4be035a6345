package record

import "github.com/iliyamo/sourcetrak/internal/model"

// ExplorerBase is the block explorer the product links transactions to.
const ExplorerBase = "http://167.99.222.73:8090/#/transactions"

// Stats are the dashboard counters.
type Stats struct {
	TotalEntries    int `json:"total_entries"`
	VerifiedEntries int `json:"verified_entries"`
	UniqueProducts  int `json:"unique_products"`
	UniqueFarms     int `json:"unique_farms"`
}

// Summarize computes dashboard counters over a user's entries.
func Summarize(entries []model.ViewModel) Stats {
	products := map[string]struct{}{}
	farms := map[string]struct{}{}
	s := Stats{TotalEntries: len(entries)}
	for _, e := range entries {
		if e.Status == model.StatusVerified {
			s.VerifiedEntries++
		}
		products[e.ProductType] = struct{}{}
		farms[e.FarmName] = struct{}{}
	}
	s.UniqueProducts = len(products)
	s.UniqueFarms = len(farms)
	return s
}

// ExplorerURL links a transaction hash to the block explorer.  Pending or
// missing hashes have no link.
func ExplorerURL(txHash string) string {
	if txHash == "" || txHash == model.PendingTxHash {
		return ""
	}
	return ExplorerBase + "/" + txHash
}
