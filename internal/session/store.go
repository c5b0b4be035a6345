// Package session holds the authenticated identity of one client.  A Store
// is constructed explicitly and handed to whatever needs the current user;
// its snapshot makes the login survive restarts (a file for the CLI, Redis
// for web sessions).
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// MinPasswordLen is the shortest password signup accepts.
const MinPasswordLen = 6

// Validation errors raised before any backend call.
var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
	ErrInvalidRole      = errors.New("invalid role")
)

// AuthAPI is the part of the backend the store needs.  *apiclient.Client
// satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	CreateUser(ctx context.Context, nu model.NewUser) (model.User, error)
	Logout(ctx context.Context) error
}

// SignupData is what the signup form collects.
type SignupData struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

// Validate applies the signup checks in the order the form reports them.
func (d SignupData) Validate() (model.Role, error) {
	if d.Password != d.ConfirmPassword {
		return "", ErrPasswordMismatch
	}
	if len(d.Password) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}
	role, ok := model.ParseRole(d.Role)
	if !ok {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Outcome reports how a best-effort backend call went.  Callers may ignore it.
type Outcome struct {
	Err error
}

// OK reports whether the backend acknowledged the call.
func (o Outcome) OK() bool { return o.Err == nil }

// Store owns the current user.
type Store struct {
	api  AuthAPI
	snap Snapshot

	mu   sync.RWMutex
	user *model.User
}

// New builds an empty store; call Load to restore a saved session.
func New(api AuthAPI, snap Snapshot) *Store {
	return &Store{api: api, snap: snap}
}

// Load restores the user from the snapshot.  A missing snapshot leaves the
// store unauthenticated; a corrupt one is cleared and treated the same way.
func (s *Store) Load(ctx context.Context) {
	b, err := s.snap.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			log.Printf("session: load snapshot: %v", err)
		}
		s.set(nil)
		return
	}
	var u model.User
	if err := json.Unmarshal(b, &u); err != nil || u.ID == "" {
		log.Printf("session: discarding corrupt snapshot: %v", err)
		if err := s.snap.Clear(ctx); err != nil {
			log.Printf("session: clear snapshot: %v", err)
		}
		s.set(nil)
		return
	}
	s.set(&u)
}

// Login authenticates against the backend and persists the session.
func (s *Store) Login(ctx context.Context, email, password string) (model.User, error) {
	u, err := s.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return model.User{}, err
	}
	if err := s.persist(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Signup validates the form locally, registers the account and logs it in.
func (s *Store) Signup(ctx context.Context, d SignupData) (model.User, error) {
	role, err := d.Validate()
	if err != nil {
		return model.User{}, err
	}
	u, err := s.api.CreateUser(ctx, model.NewUser{
		Name:     strings.TrimSpace(d.Name),
		Email:    strings.TrimSpace(d.Email),
		Password: d.Password,
		Role:     role,
	})
	if err != nil {
		return model.User{}, err
	}
	if err := s.persist(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Logout tells the backend (best-effort) and always clears local state.
func (s *Store) Logout(ctx context.Context) Outcome {
	var out Outcome
	if err := s.api.Logout(ctx); err != nil {
		log.Printf("session: backend logout failed: %v", err)
		out.Err = err
	}
	s.set(nil)
	if err := s.snap.Clear(ctx); err != nil {
		log.Printf("session: clear snapshot: %v", err)
	}
	return out
}

// IsAuthenticated reports whether a user is held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// CurrentUser returns the held user, if any.
func (s *Store) CurrentUser() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// IsFarmer reports whether the held user is a farmer.
func (s *Store) IsFarmer() bool {
	u, ok := s.CurrentUser()
	return ok && u.IsFarmer()
}

func (s *Store) persist(ctx context.Context, u model.User) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.snap.Save(ctx, b); err != nil {
		return err
	}
	s.set(&u)
	return nil
}

func (s *Store) set(u *model.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}
