package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// TokenStore keeps one upstream session per environment.
type TokenStore interface {
	Load(ctx context.Context, env domain.Environment) (*domain.AuthSession, error)
	Store(ctx context.Context, session *domain.AuthSession) error
	// Clear removes the session only if it still holds token.
	Clear(ctx context.Context, env domain.Environment, token string) error
}

// MemoryTokenStore keeps sessions in process. Replacement is a single pointer swap.
type MemoryTokenStore struct {
	mu    sync.Mutex
	slots map[domain.Environment]*atomic.Pointer[domain.AuthSession]
}

// NewMemoryTokenStore returns an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{slots: make(map[domain.Environment]*atomic.Pointer[domain.AuthSession])}
}

func (s *MemoryTokenStore) slot(env domain.Environment) *atomic.Pointer[domain.AuthSession] {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.slots[env]
	if !ok {
		p = &atomic.Pointer[domain.AuthSession]{}
		s.slots[env] = p
	}
	return p
}

func (s *MemoryTokenStore) Load(_ context.Context, env domain.Environment) (*domain.AuthSession, error) {
	return s.slot(env).Load(), nil
}

func (s *MemoryTokenStore) Store(_ context.Context, session *domain.AuthSession) error {
	s.slot(session.Environment).Store(session)
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context, env domain.Environment, token string) error {
	p := s.slot(env)
	current := p.Load()
	if current == nil || current.Token != token {
		return nil
	}
	p.CompareAndSwap(current, nil)
	return nil
}

// RedisTokenStore shares sessions between replicas.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore builds a store over client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: "gap:auth:"}
}

func (s *RedisTokenStore) key(env domain.Environment) string {
	return s.prefix + string(env)
}

func (s *RedisTokenStore) Load(ctx context.Context, env domain.Environment) (*domain.AuthSession, error) {
	raw, err := s.client.Get(ctx, s.key(env)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session domain.AuthSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisTokenStore) Store(ctx context.Context, session *domain.AuthSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !session.ValidUntil.IsZero() {
		ttl = time.Until(session.ValidUntil)
		if ttl <= 0 {
			return nil
		}
	}
	return s.client.Set(ctx, s.key(session.Environment), raw, ttl).Err()
}

// clearScript deletes the key only when it still holds the rejected token.
var clearScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return 0 end
local session = cjson.decode(raw)
if session["token"] == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisTokenStore) Clear(ctx context.Context, env domain.Environment, token string) error {
	return clearScript.Run(ctx, s.client, []string{s.key(env)}, token).Err()
}
