package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iliyamo/sourcetrak/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.URL+"/", srv.Client())
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@x.io" || body["password"] != "secret1" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = w.Write([]byte(`{"user":{"id":7,"name":"Ann","role":"Farmer"}}`))
	})
	u, err := c.Login(context.Background(), "a@x.io", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != "7" || u.Email != "a@x.io" || u.Role != model.RoleFarmer {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestLogin_RejectedIsInvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid email or password"}`))
	})
	_, err := c.Login(context.Background(), "a@x.io", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := Message(err, "fallback"); got != "Invalid email or password" {
		t.Fatalf("message = %q", got)
	}
}

func TestLogin_MissingUserIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.Login(context.Background(), "a@x.io", "secret1")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if Message(err, "") != "Invalid response from server" {
		t.Fatalf("unexpected message %q", Message(err, ""))
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Email already registered"}`))
	})
	_, err := c.CreateUser(context.Background(), model.NewUser{Name: "A", Email: "a@x.io", Password: "secret1", Role: model.RoleFarmer})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if Message(err, "") != "Email already registered" {
		t.Fatalf("unexpected message %q", Message(err, ""))
	}
}

func TestErrorBody_DegradesToFallback(t *testing.T) {
	bodies := []string{"", "<html>oops</html>", `["x"]`, `{"error":42}`, `{"error":"  "}`}
	for _, b := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(b))
		})
		_, err := c.GetBatch(context.Background(), "B1")
		if !errors.Is(err, ErrBackend) {
			t.Fatalf("body %q: expected ErrBackend, got %v", b, err)
		}
		if got := Message(err, "generic"); got != "generic" {
			t.Fatalf("body %q: message = %q", b, got)
		}
	}
}

func TestNotFoundKind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	if _, err := c.GetBatchData(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url, time.Second)
	_, err := c.GetUser(context.Background(), "1")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if Message(err, "fallback") != "fallback" {
		t.Fatalf("network errors carry no backend message")
	}
}

func TestSubmitData_SendsUserHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data" || r.Header.Get(UserIDHeader) != "u-1" {
			t.Errorf("path=%s user=%q", r.URL.Path, r.Header.Get(UserIDHeader))
		}
		var sub model.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.BatchID != "B1" || sub.FarmName != "Green" {
			t.Errorf("bad submission %+v err=%v", sub, err)
		}
		_, _ = w.Write([]byte(`{"status":"verified","txHash":"0xabc","event_id":"ev-1"}`))
	})
	ack, err := c.SubmitData(context.Background(), "u-1", model.Submission{
		FarmAttributes: model.FarmAttributes{FarmName: "Green"},
		BatchID:        "B1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ack.TxHash != "0xabc" || ack.Status != "verified" {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestCreateBatch_NumericID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/batches" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"batch_id":42}`))
	})
	id, err := c.CreateBatch(context.Background(), "u-1")
	if err != nil || id != "42" {
		t.Fatalf("id=%q err=%v", id, err)
	}
}

func TestGetHistory_DecodesRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/batches/history" || r.URL.Query().Get("page") != "2" || r.URL.Query().Get("page_size") != "50" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"event_id":"e1","batch_id":"B1","user_id":3,"data":"{\"farm_name\":\"A\"}","tx_status":true,"txhash":"0x1"},
			{"event_id":"e2","batch_id":"B1","user_id":3,"data":{"farm_name":"A"},"tx_status":0}
		]}`))
	})
	recs, err := c.GetHistory(context.Background(), "3", 2, 50)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 2 || recs[0].UserID != "3" || !recs[0].Verified() || recs[1].Verified() {
		t.Fatalf("unexpected records %+v", recs)
	}
}
