package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/gap-pos/internal/domain"
)

var (
	// ErrNotFound is returned when a key-value record does not exist or has expired.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by Save when the stored flow moved past the caller's copy.
	ErrVersionConflict = errors.New("flow was modified concurrently")
)

// FlowRepository is the session store holding in-progress flows.
//
// Save is conditional: it succeeds only when the stored version equals flow.Version
// (0 for a flow that was never stored) and then increments flow.Version.
type FlowRepository interface {
	Save(ctx context.Context, flow *domain.PolicyFlow, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.PolicyFlow, error)
	Delete(ctx context.Context, id string) error
}

type redisFlowRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisFlowRepository stores flows as JSON documents with a TTL.
func NewRedisFlowRepository(client *redis.Client) FlowRepository {
	return &redisFlowRepository{client: client, prefix: "gap:flow:"}
}

// saveFlowScript compares the version field of the stored document before replacing it.
// Returns 1 on success, 0 on a version mismatch and -1 when an existing flow has vanished.
var saveFlowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local expected = tonumber(ARGV[2])
if current then
  local stored = tonumber(cjson.decode(current)['version']) or 0
  if stored ~= expected then
    return 0
  end
elseif expected ~= 0 then
  return -1
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (r *redisFlowRepository) Save(ctx context.Context, flow *domain.PolicyFlow, ttl time.Duration) error {
	raw, next, err := marshalNextVersion(flow)
	if err != nil {
		return err
	}
	res, err := saveFlowScript.Run(ctx, r.client, []string{r.prefix + flow.ID}, raw, flow.Version, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	switch res {
	case 0:
		return ErrVersionConflict
	case -1:
		return ErrNotFound
	}
	flow.Version = next
	return nil
}

func marshalNextVersion(flow *domain.PolicyFlow) ([]byte, int64, error) {
	next := *flow
	next.Version = flow.Version + 1
	raw, err := json.Marshal(&next)
	return raw, next.Version, err
}

func (r *redisFlowRepository) Get(ctx context.Context, id string) (*domain.PolicyFlow, error) {
	raw, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var flow domain.PolicyFlow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *redisFlowRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.prefix+id).Err()
}

type memoryEntry struct {
	raw       []byte
	version   int64
	expiresAt time.Time
}

type memoryFlowRepository struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryFlowRepository keeps flows in process. Entries are copied on every read and write.
func NewMemoryFlowRepository() FlowRepository {
	return &memoryFlowRepository{items: make(map[string]memoryEntry), now: time.Now}
}

func (r *memoryFlowRepository) Save(_ context.Context, flow *domain.PolicyFlow, ttl time.Duration) error {
	raw, next, err := marshalNextVersion(flow)
	if err != nil {
		return err
	}
	now := r.now()
	entry := memoryEntry{raw: raw, version: next}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[flow.ID]
	if ok && !current.expiresAt.IsZero() && !now.Before(current.expiresAt) {
		delete(r.items, flow.ID)
		ok = false
	}
	switch {
	case ok && current.version != flow.Version:
		return ErrVersionConflict
	case !ok && flow.Version != 0:
		return ErrNotFound
	}
	r.items[flow.ID] = entry
	flow.Version = next
	return nil
}

func (r *memoryFlowRepository) Get(_ context.Context, id string) (*domain.PolicyFlow, error) {
	r.mu.Lock()
	entry, ok := r.items[id]
	if ok && !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		delete(r.items, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var flow domain.PolicyFlow
	if err := json.Unmarshal(entry.raw, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *memoryFlowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}
