package session

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/sourcetrak/internal/apiclient"
	"github.com/iliyamo/sourcetrak/internal/model"
)

type fakeAuth struct {
	loginCalls, signupCalls, logoutCalls int
	user                                 model.User
	err                                  error
	logoutErr                            error
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (model.User, error) {
	f.loginCalls++
	if f.err != nil {
		return model.User{}, f.err
	}
	u := f.user
	u.Email = email
	return u, nil
}

func (f *fakeAuth) CreateUser(ctx context.Context, nu model.NewUser) (model.User, error) {
	f.signupCalls++
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: "11", Name: nu.Name, Email: nu.Email, Role: nu.Role}, nil
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func TestLogin_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	api := &fakeAuth{user: model.User{ID: "7", Name: "Ann", Role: model.RoleFarmer}}

	s := New(api, NewFileSnapshot(dir))
	u, err := s.Login(ctx, "ann@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !s.IsAuthenticated() || u.Email != "ann@example.com" {
		t.Fatalf("unexpected state after login: %+v", u)
	}

	reloaded := New(api, NewFileSnapshot(dir))
	reloaded.Load(ctx)
	got, ok := reloaded.CurrentUser()
	if !ok || got != u {
		t.Fatalf("reload lost session: %+v %v", got, ok)
	}
	if !reloaded.IsFarmer() {
		t.Fatalf("expected farmer")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	api := &fakeAuth{err: &apiclient.Error{Op: "login", Status: 401, Kind: apiclient.ErrInvalidCredentials}}
	s := New(api, NewMemorySnapshots().For("x"))
	_, err := s.Login(context.Background(), "a@b.c", "nope")
	if !errors.Is(err, apiclient.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatalf("store authenticated after failed login")
	}
}

func TestSignup_ValidationBeforeNetwork(t *testing.T) {
	cases := []struct {
		name    string
		data    SignupData
		wantErr error
	}{
		{"too short", SignupData{Password: "abc12", ConfirmPassword: "abc12", Role: "Farmer"}, ErrPasswordTooShort},
		{"mismatch", SignupData{Password: "abcdef", ConfirmPassword: "abcdeg", Role: "Farmer"}, ErrPasswordMismatch},
		{"mismatch wins over length", SignupData{Password: "abc", ConfirmPassword: "abd", Role: "Farmer"}, ErrPasswordMismatch},
	}
	for _, tc := range cases {
		api := &fakeAuth{}
		s := New(api, NewMemorySnapshots().For("x"))
		_, err := s.Signup(context.Background(), tc.data)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: err %v, want %v", tc.name, err, tc.wantErr)
		}
		if api.signupCalls != 0 {
			t.Errorf("%s: backend called %d times", tc.name, api.signupCalls)
		}
	}
}

func TestSignup_Conflict(t *testing.T) {
	api := &fakeAuth{err: &apiclient.Error{Op: "create user", Status: 409, Message: "email already exists", Kind: apiclient.ErrConflict}}
	s := New(api, NewMemorySnapshots().For("x"))
	_, err := s.Signup(context.Background(), SignupData{Name: "A", Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret1", Role: "producer"})
	if !errors.Is(err, apiclient.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if apiclient.Message(err, "") != "email already exists" {
		t.Fatalf("backend message lost: %v", err)
	}
}

func TestSignup_LogsIn(t *testing.T) {
	api := &fakeAuth{}
	s := New(api, NewMemorySnapshots().For("x"))
	u, err := s.Signup(context.Background(), SignupData{Name: " Bo ", Email: "bo@b.c", Password: "secret1", ConfirmPassword: "secret1", Role: "retailer"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Role != model.RoleRetailer || u.Name != "Bo" || !s.IsAuthenticated() {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestLogout_ClearsEvenWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	snaps := NewMemorySnapshots()
	api := &fakeAuth{user: model.User{ID: "7", Role: model.RoleProducer}, logoutErr: errors.New("boom")}
	s := New(api, snaps.For("sid"))
	if _, err := s.Login(ctx, "p@b.c", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out := s.Logout(ctx)
	if out.OK() {
		t.Fatalf("expected outcome to carry backend failure")
	}
	if s.IsAuthenticated() {
		t.Fatalf("still authenticated after logout")
	}
	if _, err := snaps.For("sid").Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("snapshot not cleared: %v", err)
	}
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	snaps := NewMemorySnapshots()
	if err := snaps.For("sid").Save(ctx, []byte("{not json")); err != nil {
		t.Fatalf("save: %v", err)
	}
	s := New(&fakeAuth{}, snaps.For("sid"))
	s.Load(ctx)
	if s.IsAuthenticated() {
		t.Fatalf("corrupt snapshot authenticated the store")
	}
	if _, err := snaps.For("sid").Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("corrupt snapshot kept: %v", err)
	}
}

func TestFileSnapshot_MissingIsNoSnapshot(t *testing.T) {
	f := NewFileSnapshot(t.TempDir())
	if _, err := f.Load(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("got %v", err)
	}
	if err := f.Clear(context.Background()); err != nil {
		t.Fatalf("clear of missing file: %v", err)
	}
}
