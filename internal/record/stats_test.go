package record

import (
	"testing"

	"github.com/iliyamo/sourcetrak/internal/model"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]model.ViewModel{
		{FarmName: "A", ProductType: "tomatoes", Status: model.StatusVerified},
		{FarmName: "A", ProductType: "lettuce", Status: model.StatusPending},
		{FarmName: "B", ProductType: "tomatoes", Status: model.StatusVerified},
	})
	want := Stats{TotalEntries: 3, VerifiedEntries: 2, UniqueProducts: 2, UniqueFarms: 2}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}
}

func TestExplorerURL(t *testing.T) {
	if got := ExplorerURL(model.PendingTxHash); got != "" {
		t.Fatalf("pending hash linked: %q", got)
	}
	if got := ExplorerURL("0xabc"); got != ExplorerBase+"/0xabc" {
		t.Fatalf("got %q", got)
	}
}
