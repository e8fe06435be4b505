package oauth

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"

	"github.com/carlossalguero/socialauth/services/shared/cache"
)

// TokenStore caches provider access tokens between logins.
// Load returns a nil token when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context, key string) (*oauth2.Token, error)
	Save(ctx context.Context, key string, token *oauth2.Token) error
	Clear(ctx context.Context, key string) error
}

// tokenTTL returns how long token should be kept. Zero means no expiry.
func tokenTTL(token *oauth2.Token) (time.Duration, bool) {
	if token.Expiry.IsZero() {
		return 0, true
	}
	ttl := time.Until(token.Expiry)
	return ttl, ttl > 0
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	tokens *gocache.Cache
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Load implements TokenStore.
func (s *MemoryTokenStore) Load(_ context.Context, key string) (*oauth2.Token, error) {
	v, ok := s.tokens.Get(key)
	if !ok {
		return nil, nil
	}
	token := *v.(*oauth2.Token)
	return &token, nil
}

// Save implements TokenStore. Expired tokens are not stored.
func (s *MemoryTokenStore) Save(_ context.Context, key string, token *oauth2.Token) error {
	ttl, ok := tokenTTL(token)
	if !ok {
		s.tokens.Delete(key)
		return nil
	}
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	stored := *token
	s.tokens.Set(key, &stored, ttl)
	return nil
}

// Clear implements TokenStore.
func (s *MemoryTokenStore) Clear(_ context.Context, key string) error {
	s.tokens.Delete(key)
	return nil
}

// RedisTokenStore keeps tokens in Redis so they survive restarts.
type RedisTokenStore struct {
	client *cache.Client
}

// NewRedisTokenStore creates a store backed by client.
func NewRedisTokenStore(client *cache.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func redisTokenKey(key string) string {
	return "token:" + key
}

// Load implements TokenStore.
func (s *RedisTokenStore) Load(ctx context.Context, key string) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := s.client.GetJSON(ctx, redisTokenKey(key), &token); err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// Save implements TokenStore. Expired tokens are not stored.
func (s *RedisTokenStore) Save(ctx context.Context, key string, token *oauth2.Token) error {
	ttl, ok := tokenTTL(token)
	if !ok {
		return s.Clear(ctx, key)
	}
	return s.client.SetJSON(ctx, redisTokenKey(key), token, ttl)
}

// Clear implements TokenStore.
func (s *RedisTokenStore) Clear(ctx context.Context, key string) error {
	return s.client.Delete(ctx, redisTokenKey(key))
}
