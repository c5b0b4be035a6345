package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sourcetrak/internal/model"
)

// UserAPI is the part of the backend client the directory needs.
type UserAPI interface {
	GetUser(ctx context.Context, id model.ID) (model.User, error)
}

// UserDirectory resolves user profiles through a Redis read-through cache
// under sourcetrak:user:<id>.  With a nil Redis client every lookup goes to
// the backend.  Only id, name and role are cached.
type UserDirectory struct {
	api UserAPI
	rdb *redis.Client
	ttl time.Duration
}

func NewUserDirectory(api UserAPI, rdb *redis.Client, ttl time.Duration) *UserDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UserDirectory{api: api, rdb: rdb, ttl: ttl}
}

func userKey(id model.ID) string { return "sourcetrak:user:" + id.String() }

// Lookup returns the profile for id.
func (d *UserDirectory) Lookup(ctx context.Context, id model.ID) (model.User, error) {
	if id == "" {
		return model.User{}, errors.New("user lookup: empty id")
	}
	if d.rdb != nil {
		b, err := d.rdb.Get(ctx, userKey(id)).Bytes()
		switch {
		case err == nil:
			var u model.User
			if json.Unmarshal(b, &u) == nil && u.ID != "" {
				return u, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Printf("user-directory: cache read %s: %v", id, err)
		}
	}
	u, err := d.api.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if u.ID == "" {
		u.ID = id
	}
	if d.rdb != nil {
		b, _ := json.Marshal(model.User{ID: u.ID, Name: u.Name, Role: u.Role})
		if err := d.rdb.Set(ctx, userKey(id), b, d.ttl).Err(); err != nil {
			log.Printf("user-directory: cache write %s: %v", id, err)
		}
	}
	return u, nil
}
