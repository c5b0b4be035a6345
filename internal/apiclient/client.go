// Package apiclient is the typed HTTP client for the SourceTrak backend.
// Every call takes a context, sends JSON, and reports failures as *Error so
// that callers can show the backend's own message when one exists.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// UserIDHeader carries the acting user's id on calls that need one.
const UserIDHeader = "user-id"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to one backend base URL (e.g. https://staging.sourcetrak.com/api).
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL.  A zero timeout leaves the http.Client
// without a deadline; per-call contexts still apply.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient is like New but reuses an existing http.Client (tests use
// the one from httptest.Server).
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	User *model.User `json:"user"`
}

// Login exchanges credentials for the user record.  Any 4xx is reported as
// ErrInvalidCredentials; the email is copied from the input because the
// backend does not echo it.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	var out loginResp
	err := c.do(ctx, "login", http.MethodPost, "/login", "", loginReq{Email: email, Password: password}, &out)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Status >= 400 && e.Status < 500 {
			e.Kind = ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if out.User == nil || out.User.ID == "" {
		return model.User{}, &Error{Op: "login", Kind: ErrMalformed, Message: "Invalid response from server"}
	}
	u := *out.User
	u.Email = email
	return u, nil
}

// Logout notifies the backend.  Callers treat failures as best-effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/logout", "", nil, nil)
}

// CreateUser registers a new account.  A 409 surfaces as ErrConflict.
func (c *Client) CreateUser(ctx context.Context, nu model.NewUser) (model.User, error) {
	var out model.User
	if err := c.do(ctx, "create user", http.MethodPost, "/users", "", nu, &out); err != nil {
		return model.User{}, err
	}
	if out.ID == "" {
		return model.User{}, &Error{Op: "create user", Kind: ErrMalformed, Message: "Invalid response from server"}
	}
	out.Email = nu.Email
	return out, nil
}

// GetUser fetches a user's public profile (id, name, role).
func (c *Client) GetUser(ctx context.Context, id model.ID) (model.User, error) {
	var out model.User
	err := c.do(ctx, "get user", http.MethodGet, "/users/"+url.PathEscape(id.String()), "", nil, &out)
	return out, err
}

type createBatchResp struct {
	BatchID model.ID `json:"batch_id"`
}

// CreateBatch asks the backend for a new batch owned by userID.
func (c *Client) CreateBatch(ctx context.Context, userID model.ID) (string, error) {
	var out createBatchResp
	if err := c.do(ctx, "create batch", http.MethodPost, "/batches", userID, nil, &out); err != nil {
		return "", err
	}
	if out.BatchID == "" {
		return "", &Error{Op: "create batch", Kind: ErrMalformed, Message: "Invalid response from server"}
	}
	return out.BatchID.String(), nil
}

// GetBatch fetches the batch header.
func (c *Client) GetBatch(ctx context.Context, batchID string) (model.Batch, error) {
	var out model.Batch
	err := c.do(ctx, "get batch", http.MethodGet, "/batches/"+url.PathEscape(batchID), "", nil, &out)
	return out, err
}

// GetBatchData fetches the batch header together with all of its records.
func (c *Client) GetBatchData(ctx context.Context, batchID string) (model.BatchData, error) {
	var out model.BatchData
	err := c.do(ctx, "get batch data", http.MethodGet, "/batches/"+url.PathEscape(batchID)+"/data", "", nil, &out)
	return out, err
}

// GetBatchBlockchain returns the ledger metadata for a batch untouched.
func (c *Client) GetBatchBlockchain(ctx context.Context, batchID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, "get blockchain data", http.MethodGet, "/batches/"+url.PathEscape(batchID)+"/blockchain", "", nil, &out)
	return out, err
}

type historyResp struct {
	Data []model.RawRecord `json:"data"`
}

// GetHistory lists the records the acting user contributed, newest first.
func (c *Client) GetHistory(ctx context.Context, userID model.ID, page, pageSize int) ([]model.RawRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	var out historyResp
	if err := c.do(ctx, "get history", http.MethodGet, "/batches/history?"+q.Encode(), userID, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SubmitData sends a farm record for the given batch.
func (c *Client) SubmitData(ctx context.Context, userID model.ID, sub model.Submission) (model.SubmitAck, error) {
	var out model.SubmitAck
	err := c.do(ctx, "submit data", http.MethodPost, "/data", userID, sub, &out)
	return out, err
}

// GetDataByEventID fetches a single record.
func (c *Client) GetDataByEventID(ctx context.Context, eventID string) (model.RawRecord, error) {
	var out model.RawRecord
	err := c.do(ctx, "get data by event", http.MethodGet, "/data/event/"+url.PathEscape(eventID), "", nil, &out)
	return out, err
}

// do performs one JSON round trip.  out may be nil when the body is ignored.
func (c *Client) do(ctx context.Context, op, method, path string, userID model.ID, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: ErrMalformed, Err: err}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if userID != "" {
		req.Header.Set(UserIDHeader, userID.String())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &Error{
			Op:      op,
			Status:  resp.StatusCode,
			Message: readErrorMessage(resp.Body),
			Kind:    kindFor(resp.StatusCode),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Kind: ErrMalformed, Err: err}
	}
	return nil
}

func kindFor(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return ErrBackend
}

// readErrorMessage extracts "error" (preferred) or "message" from a JSON
// error body.  Bodies of any other shape yield "".
func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil {
		return ""
	}
	for _, k := range []string{"error", "message"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
