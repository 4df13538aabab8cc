package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authkeep/authkeep/internal/domain"
)

// Compile-time interface assertions.
var (
	_ ClientRepository   = (*PostgresClientRepo)(nil)
	_ IdentityRepository = (*PostgresIdentityRepo)(nil)
	_ TokenRepository    = (*PostgresTokenRepo)(nil)
)

// PostgresClientRepo implements ClientRepository over pgx.
type PostgresClientRepo struct {
	db *pgxpool.Pool
}

func NewPostgresClientRepo(db *pgxpool.Pool) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

const selectClientSQL = `SELECT id, application_id, name, client_type, COALESCE(secret, ''),
	access_token_ttl, refresh_token_ttl, auth_code_ttl, config, created_at, updated_at
FROM clients WHERE id = $1`

func (r *PostgresClientRepo) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	var (
		c          domain.Client
		clientType string
		accessTTL  int64
		refreshTTL int64
		codeTTL    int64
	)
	row := r.db.QueryRow(ctx, selectClientSQL, id)
	if err := row.Scan(&c.ID, &c.ApplicationID, &c.Name, &clientType, &c.Secret,
		&accessTTL, &refreshTTL, &codeTTL, &c.Config, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	c.Type = domain.ClientType(clientType)
	c.AccessTokenTTL = time.Duration(accessTTL) * time.Second
	c.RefreshTokenTTL = time.Duration(refreshTTL) * time.Second
	c.AuthCodeTTL = time.Duration(codeTTL) * time.Second

	var err error
	if c.Redirects, err = r.clientURIs(ctx, "client_redirects", id); err != nil {
		return domain.Client{}, err
	}
	if c.Referrers, err = r.clientURIs(ctx, "client_referrers", id); err != nil {
		return domain.Client{}, err
	}
	if c.Authenticators, err = r.clientAuthenticators(ctx, id); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (r *PostgresClientRepo) clientURIs(ctx context.Context, table string, clientID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT uri FROM %s WHERE client_id = $1 ORDER BY uri`, table), clientID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}

func (r *PostgresClientRepo) clientAuthenticators(ctx context.Context, clientID uuid.UUID) ([]domain.Authenticator, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, client_id, auth_type, config, created_at FROM authenticators WHERE client_id = $1 ORDER BY auth_type`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("list authenticators: %w", err)
	}
	defer rows.Close()

	var auths []domain.Authenticator
	for rows.Next() {
		var a domain.Authenticator
		if err := rows.Scan(&a.ID, &a.ClientID, &a.Type, &a.Config, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan authenticator: %w", err)
		}
		auths = append(auths, a)
	}
	return auths, rows.Err()
}

func (r *PostgresClientRepo) GetApplicationScopes(ctx context.Context, applicationID uuid.UUID) (domain.Scopes, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, application_id, name, created_at FROM application_scopes WHERE application_id = $1 ORDER BY name`,
		applicationID)
	if err != nil {
		return nil, fmt.Errorf("list application scopes: %w", err)
	}
	defer rows.Close()

	scopes := domain.Scopes{}
	for rows.Next() {
		var s domain.ApplicationScope
		if err := rows.Scan(&s.ID, &s.ApplicationID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan application scope: %w", err)
		}
		scopes[s.Name] = s
	}
	return scopes, rows.Err()
}

// PostgresIdentityRepo implements IdentityRepository.
type PostgresIdentityRepo struct {
	db *pgxpool.Pool
}

func NewPostgresIdentityRepo(db *pgxpool.Pool) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const selectIdentitySQL = `SELECT id, user_id, authenticator_id, auth_type, remote_id, claims, COALESCE(password_hash, ''), created_at
FROM user_identities`

func (r *PostgresIdentityRepo) GetIdentity(ctx context.Context, authenticatorID uuid.UUID, remoteID string) (domain.UserIdentity, error) {
	row := r.db.QueryRow(ctx, selectIdentitySQL+` WHERE authenticator_id = $1 AND remote_id = $2`, authenticatorID, remoteID)
	return scanIdentity(row)
}

func (r *PostgresIdentityRepo) GetIdentityByID(ctx context.Context, id uuid.UUID) (domain.UserIdentity, error) {
	row := r.db.QueryRow(ctx, selectIdentitySQL+` WHERE id = $1`, id)
	return scanIdentity(row)
}

func scanIdentity(row pgx.Row) (domain.UserIdentity, error) {
	var identity domain.UserIdentity
	if err := row.Scan(&identity.ID, &identity.UserID, &identity.AuthenticatorID, &identity.Type,
		&identity.RemoteID, &identity.Claims, &identity.PasswordHash, &identity.CreatedAt); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

// PostgresTokenRepo implements TokenRepository.
type PostgresTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTokenRepo(db *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

const insertTokenSQL = `INSERT INTO oauth_tokens
	(id, token_type, client_id, identity_id, parent_id, session_id, redirect_uri, expires_in, issuer, scopes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (r *PostgresTokenRepo) CreateTokens(ctx context.Context, tokens ...domain.OAuthToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin issue: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range tokens {
		if _, err := tx.Exec(ctx, insertTokenSQL,
			t.ID, string(t.Type), t.ClientID, t.IdentityID, t.ParentID, t.SessionID,
			nullable(t.RedirectURI), t.ExpiresIn, t.Issuer, t.Scopes.Names(), t.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert token: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit issue: %w", err)
	}
	return nil
}

const selectTokenSQL = `SELECT id, token_type, client_id, identity_id, parent_id, session_id,
	COALESCE(redirect_uri, ''), expires_in, COALESCE(issuer, ''), scopes, created_at
FROM oauth_tokens`

func (r *PostgresTokenRepo) GetToken(ctx context.Context, id uuid.UUID) (domain.OAuthToken, error) {
	row := r.db.QueryRow(ctx, selectTokenSQL+` WHERE id = $1`, id)
	return scanToken(row)
}

// ConsumeToken is the single-use enforcement point: the row is removed and
// returned in one statement, so two concurrent exchanges of the same
// authorization code resolve to exactly one success.
func (r *PostgresTokenRepo) ConsumeToken(ctx context.Context, id uuid.UUID, tokenType domain.TokenType, clientID uuid.UUID) (domain.OAuthToken, error) {
	row := r.db.QueryRow(ctx,
		`DELETE FROM oauth_tokens WHERE id = $1 AND token_type = $2 AND client_id = $3
		 RETURNING id, token_type, client_id, identity_id, parent_id, session_id,
			COALESCE(redirect_uri, ''), expires_in, COALESCE(issuer, ''), scopes, created_at`,
		id, string(tokenType), clientID)
	return scanToken(row)
}

// DeleteToken removes a token and every child chained to it in one
// statement, keeping the cascade atomic.
func (r *PostgresTokenRepo) DeleteToken(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE id = $1 OR parent_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresTokenRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM oauth_tokens WHERE session_id = $1
			OR parent_id IN (SELECT id FROM oauth_tokens WHERE session_id = $1)`,
		sessionID); err != nil {
		return fmt.Errorf("delete session tokens: %w", err)
	}
	return nil
}

func (r *PostgresTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM oauth_tokens WHERE created_at + (expires_in * interval '1 second') < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (domain.OAuthToken, error) {
	var (
		t         domain.OAuthToken
		tokenType string
		names     []string
	)
	if err := row.Scan(&t.ID, &tokenType, &t.ClientID, &t.IdentityID, &t.ParentID, &t.SessionID,
		&t.RedirectURI, &t.ExpiresIn, &t.Issuer, &names, &t.CreatedAt); err != nil {
		return domain.OAuthToken{}, err
	}
	t.Type = domain.TokenType(tokenType)
	t.Scopes = domain.ScopesFromNames(names...)
	return t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
