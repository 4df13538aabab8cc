package oauth_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/authkeep/authkeep/internal/config"
	"github.com/authkeep/authkeep/internal/domain"
)

func testConfig() config.Config {
	return config.Config{
		Issuer:          "https://auth.example.com",
		LoginURL:        "https://auth.example.com/login",
		AccessTokenTTL:  10 * time.Minute,
		RefreshTokenTTL: time.Hour,
		AuthCodeTTL:     10 * time.Minute,
		StateTTL:        5 * time.Minute,
	}
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

type memoryClientRepo struct {
	clients map[uuid.UUID]domain.Client
	scopes  map[uuid.UUID]domain.Scopes
}

func newMemoryClientRepo(clients ...domain.Client) *memoryClientRepo {
	repo := &memoryClientRepo{
		clients: make(map[uuid.UUID]domain.Client),
		scopes:  make(map[uuid.UUID]domain.Scopes),
	}
	for _, c := range clients {
		repo.clients[c.ID] = c
	}
	return repo
}

func (m *memoryClientRepo) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return domain.Client{}, pgx.ErrNoRows
	}
	return client, nil
}

func (m *memoryClientRepo) GetApplicationScopes(ctx context.Context, applicationID uuid.UUID) (domain.Scopes, error) {
	scopes, ok := m.scopes[applicationID]
	if !ok {
		return domain.Scopes{}, nil
	}
	return scopes, nil
}

type memoryIdentityRepo struct {
	identities []domain.UserIdentity
}

func (m *memoryIdentityRepo) GetIdentity(ctx context.Context, authenticatorID uuid.UUID, remoteID string) (domain.UserIdentity, error) {
	for _, id := range m.identities {
		if id.AuthenticatorID == authenticatorID && id.RemoteID == remoteID {
			return id, nil
		}
	}
	return domain.UserIdentity{}, pgx.ErrNoRows
}

func (m *memoryIdentityRepo) GetIdentityByID(ctx context.Context, id uuid.UUID) (domain.UserIdentity, error) {
	for _, identity := range m.identities {
		if identity.ID == id {
			return identity, nil
		}
	}
	return domain.UserIdentity{}, pgx.ErrNoRows
}

type memoryTokenRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]domain.OAuthToken
}

func newMemoryTokenRepo(tokens ...domain.OAuthToken) *memoryTokenRepo {
	repo := &memoryTokenRepo{tokens: make(map[uuid.UUID]domain.OAuthToken)}
	for _, t := range tokens {
		repo.tokens[t.ID] = t
	}
	return repo
}

func (m *memoryTokenRepo) CreateTokens(ctx context.Context, tokens ...domain.OAuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tokens {
		m.tokens[t.ID] = t
	}
	return nil
}

func (m *memoryTokenRepo) GetToken(ctx context.Context, id uuid.UUID) (domain.OAuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return domain.OAuthToken{}, pgx.ErrNoRows
	}
	return token, nil
}

func (m *memoryTokenRepo) ConsumeToken(ctx context.Context, id uuid.UUID, tokenType domain.TokenType, clientID uuid.UUID) (domain.OAuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok || token.Type != tokenType || token.ClientID != clientID {
		return domain.OAuthToken{}, pgx.ErrNoRows
	}
	delete(m.tokens, id)
	return token, nil
}

func (m *memoryTokenRepo) DeleteToken(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, t := range m.tokens {
		if t.ID == id || (t.ParentID != nil && *t.ParentID == id) {
			delete(m.tokens, key)
			removed++
		}
	}
	if removed == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (m *memoryTokenRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.tokens {
		if t.SessionID != nil && *t.SessionID == sessionID {
			delete(m.tokens, key)
		}
	}
	return nil
}

func (m *memoryTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, t := range m.tokens {
		if t.IsExpired() {
			delete(m.tokens, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryTokenRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *memoryTokenRepo) byType(tokenType domain.TokenType) []domain.OAuthToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OAuthToken
	for _, t := range m.tokens {
		if t.Type == tokenType {
			out = append(out, t)
		}
	}
	return out
}

type memoryStateStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]domain.AuthenticatorState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[uuid.UUID]domain.AuthenticatorState)}
}

func (m *memoryStateStore) SaveState(ctx context.Context, state domain.AuthenticatorState, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.ID] = state
	return nil
}

func (m *memoryStateStore) GetState(ctx context.Context, id uuid.UUID) (*domain.AuthenticatorState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *memoryStateStore) DeleteState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}
