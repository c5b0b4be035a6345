package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotKey is the product-namespaced key the session snapshot lives under.
const SnapshotKey = "sourcetrak_user"

// ErrNoSnapshot is returned by Snapshot.Load when nothing has been saved.
var ErrNoSnapshot = errors.New("no session snapshot")

// Snapshot is durable storage for one session's serialized user.
type Snapshot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, b []byte) error
	Clear(ctx context.Context) error
}

// FileSnapshot keeps the snapshot in a single JSON file.  The CLI uses it so
// that a login survives between invocations.
type FileSnapshot struct {
	mu   sync.Mutex
	path string
}

// NewFileSnapshot stores the snapshot as <dir>/sourcetrak_user.json.
func NewFileSnapshot(dir string) *FileSnapshot {
	return &FileSnapshot{path: filepath.Join(dir, SnapshotKey+".json")}
}

func (f *FileSnapshot) Load(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	return b, err
}

func (f *FileSnapshot) Save(ctx context.Context, b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	// write-then-rename so a crash never leaves a half-written snapshot
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileSnapshot) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RedisSnapshot keeps one web session's snapshot in Redis under
// sourcetrak_user:<sid>, expiring after ttl of inactivity.
type RedisSnapshot struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisSnapshot binds a snapshot to the session id sid.
func NewRedisSnapshot(rdb *redis.Client, sid string, ttl time.Duration) *RedisSnapshot {
	return &RedisSnapshot{rdb: rdb, key: SnapshotKey + ":" + sid, ttl: ttl}
}

func (r *RedisSnapshot) Load(ctx context.Context) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		_ = r.rdb.Expire(ctx, r.key, r.ttl).Err()
	}
	return b, nil
}

func (r *RedisSnapshot) Save(ctx context.Context, b []byte) error {
	return r.rdb.Set(ctx, r.key, b, r.ttl).Err()
}

func (r *RedisSnapshot) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

// MemorySnapshots is an in-process snapshot registry keyed by session id.
// The web server falls back to it when Redis is unavailable.
type MemorySnapshots struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{data: map[string][]byte{}}
}

// For returns the snapshot of session sid.
func (m *MemorySnapshots) For(sid string) Snapshot { return memorySnapshot{m: m, sid: sid} }

type memorySnapshot struct {
	m   *MemorySnapshots
	sid string
}

func (s memorySnapshot) Load(ctx context.Context) ([]byte, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	b, ok := s.m.data[s.sid]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), b...), nil
}

func (s memorySnapshot) Save(ctx context.Context, b []byte) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.data[s.sid] = append([]byte(nil), b...)
	return nil
}

func (s memorySnapshot) Clear(ctx context.Context) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.data, s.sid)
	return nil
}

// Snapshots hands out the snapshot for a web session id.
type Snapshots interface {
	For(sid string) Snapshot
}

// RedisSnapshots is the Redis-backed Snapshots implementation.
type RedisSnapshots struct {
	RDB *redis.Client
	TTL time.Duration
}

func (r RedisSnapshots) For(sid string) Snapshot { return NewRedisSnapshot(r.RDB, sid, r.TTL) }

// NewSnapshots picks Redis when a client is available and memory otherwise.
func NewSnapshots(rdb *redis.Client, ttl time.Duration) Snapshots {
	if rdb == nil {
		return NewMemorySnapshots()
	}
	return RedisSnapshots{RDB: rdb, TTL: ttl}
}
