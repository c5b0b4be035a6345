package record

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/iliyamo/sourcetrak/internal/model"
)

const attrsJSON = `{"farm_id":"f-1","farm_name":"Green Valley","location_coordinates":"40.712800, -74.006000","harvest_date":"2025-06-01","product_type":"tomatoes","farming_method":"organic","certifications":"EU Organic"}`

func rawRecord(t *testing.T, data json.RawMessage, txStatus string) model.RawRecord {
	t.Helper()
	rec := model.RawRecord{
		EventID:   "ev-1",
		BatchID:   "B1",
		UserID:    "7",
		Data:      data,
		CreatedAt: "2025-06-02T10:00:00Z",
		TxHash:    "0xabc",
	}
	if txStatus != "" {
		rec.TxStatus = json.RawMessage(txStatus)
	}
	return rec
}

func encodedString(t *testing.T, s string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestToViewModel_StringAndObjectDataMatch(t *testing.T) {
	fromObject, err := ToViewModel("B1", rawRecord(t, json.RawMessage(attrsJSON), "true"))
	if err != nil {
		t.Fatalf("object data: %v", err)
	}
	fromString, err := ToViewModel("B1", rawRecord(t, encodedString(t, attrsJSON), "true"))
	if err != nil {
		t.Fatalf("string data: %v", err)
	}
	if fromObject != fromString {
		t.Fatalf("representations differ:\n%+v\n%+v", fromObject, fromString)
	}
	if fromObject.FarmName != "Green Valley" || fromObject.BatchID != "B1" || fromObject.ID != "ev-1" {
		t.Fatalf("unexpected view model %+v", fromObject)
	}
	if fromObject.Timestamp != "2025-06-02T10:00:00Z" || fromObject.TxHash != "0xabc" {
		t.Fatalf("timestamp/txHash not carried over: %+v", fromObject)
	}
}

func TestToViewModel_Status(t *testing.T) {
	cases := map[string]string{
		"true":    model.StatusVerified,
		"1":       model.StatusVerified,
		`"mined"`: model.StatusVerified,
		`"0"`:     model.StatusVerified,
		`"false"`: model.StatusVerified,
		`" "`:     model.StatusVerified,
		"false":   model.StatusPending,
		"0":       model.StatusPending,
		"null":    model.StatusPending,
		`""`:      model.StatusPending,
		"":        model.StatusPending,
	}
	for raw, want := range cases {
		vm, err := ToViewModel("B1", rawRecord(t, json.RawMessage(attrsJSON), raw))
		if err != nil {
			t.Fatalf("tx_status %q: %v", raw, err)
		}
		if vm.Status != want {
			t.Errorf("tx_status %q: status %q, want %q", raw, vm.Status, want)
		}
	}
}

func TestToViewModel_ParseError(t *testing.T) {
	for _, data := range []string{"42", "[1,2]", `"not json"`, "", "null"} {
		_, err := ToViewModel("B1", rawRecord(t, json.RawMessage(data), "true"))
		if !errors.Is(err, ErrParse) {
			t.Errorf("data %q: err %v, want ErrParse", data, err)
		}
	}
}

func TestPrimary_EmptyBatch(t *testing.T) {
	_, err := Primary(model.BatchData{Batch: model.Batch{BatchID: "B1"}})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestPrimary_UsesFirstRecord(t *testing.T) {
	first := rawRecord(t, json.RawMessage(attrsJSON), "true")
	second := rawRecord(t, json.RawMessage(`{"farm_name":"Other"}`), "false")
	second.EventID = "ev-2"
	vm, err := Primary(model.BatchData{Batch: model.Batch{BatchID: "B1"}, Data: []model.RawRecord{first, second}})
	if err != nil {
		t.Fatalf("primary: %v", err)
	}
	if vm.ID != "ev-1" || vm.FarmName != "Green Valley" {
		t.Fatalf("primary picked wrong record: %+v", vm)
	}
}

func TestToBatchHistory_AllResolversFail(t *testing.T) {
	recs := []model.RawRecord{{UserID: "1"}, {UserID: "2"}, {UserID: "3"}}
	calls := 0
	got := ToBatchHistory(recs, func(model.ID) (RoleInfo, bool) {
		calls++
		return RoleInfo{}, false
	})
	if len(got) != len(recs) {
		t.Fatalf("got %d entries, want %d", len(got), len(recs))
	}
	if calls != len(recs) {
		t.Fatalf("resolver called %d times, want %d", calls, len(recs))
	}
	for i, h := range got {
		if h.UserRole != model.UnknownRole || h.UserName != "" {
			t.Errorf("entry %d: role %q name %q", i, h.UserRole, h.UserName)
		}
	}
}

func TestToBatchHistory_KeepsKnownRoles(t *testing.T) {
	recs := []model.RawRecord{
		{UserID: "1", UserRole: "Farmer", UserName: "Ann"},
		{UserID: "2"},
	}
	got := ToBatchHistory(recs, func(id model.ID) (RoleInfo, bool) {
		if id == "1" {
			t.Fatalf("resolver called for record that already has a role")
		}
		return RoleInfo{Role: "Logistics", Name: "Bo"}, true
	})
	if got[0].UserRole != "Farmer" || got[0].UserName != "Ann" {
		t.Fatalf("entry 0 changed: %+v", got[0])
	}
	if got[1].UserRole != "Logistics" || got[1].UserName != "Bo" {
		t.Fatalf("entry 1 not resolved: %+v", got[1])
	}
}

func TestCanUserAddData(t *testing.T) {
	history := []model.BatchHistoryEntry{
		{RawRecord: model.RawRecord{UserID: "1", UserRole: "Farmer"}},
		{RawRecord: model.RawRecord{UserID: "2", UserRole: "Producer"}},
	}
	cases := []struct {
		name string
		user *model.User
		hist []model.BatchHistoryEntry
		want bool
	}{
		{"nil user", nil, history, false},
		{"farmer empty history", &model.User{ID: "9", Role: model.RoleFarmer}, nil, false},
		{"farmer originator", &model.User{ID: "1", Role: model.RoleFarmer}, history, false},
		{"producer already contributed", &model.User{ID: "2", Role: model.RoleProducer}, history, false},
		{"logistics new", &model.User{ID: "3", Role: model.RoleLogistics}, history, true},
		{"retailer new", &model.User{ID: "4", Role: model.RoleRetailer}, history, true},
		{"no role", &model.User{ID: "5"}, history, false},
		{"unknown role", &model.User{ID: "6", Role: "Auditor"}, history, false},
	}
	for _, tc := range cases {
		if got := CanUserAddData(tc.user, tc.hist); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
