package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS applications (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS application_scopes (
		id UUID PRIMARY KEY,
		application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (application_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id UUID PRIMARY KEY,
		application_id UUID NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		client_type TEXT NOT NULL,
		secret TEXT,
		access_token_ttl BIGINT NOT NULL DEFAULT 0,
		refresh_token_ttl BIGINT NOT NULL DEFAULT 0,
		auth_code_ttl BIGINT NOT NULL DEFAULT 0,
		config JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS client_redirects (
		client_id UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		uri TEXT NOT NULL,
		PRIMARY KEY (client_id, uri)
	)`,
	`CREATE TABLE IF NOT EXISTS client_referrers (
		client_id UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		uri TEXT NOT NULL,
		PRIMARY KEY (client_id, uri)
	)`,
	`CREATE TABLE IF NOT EXISTS authenticators (
		id UUID PRIMARY KEY,
		client_id UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		auth_type TEXT NOT NULL,
		config JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_identities (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		authenticator_id UUID NOT NULL REFERENCES authenticators(id) ON DELETE CASCADE,
		auth_type TEXT NOT NULL,
		remote_id TEXT NOT NULL,
		claims JSONB,
		password_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (authenticator_id, remote_id)
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_tokens (
		id UUID PRIMARY KEY,
		token_type TEXT NOT NULL,
		client_id UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		identity_id UUID REFERENCES user_identities(id) ON DELETE CASCADE,
		parent_id UUID REFERENCES oauth_tokens(id) ON DELETE CASCADE,
		session_id UUID,
		redirect_uri TEXT,
		expires_in BIGINT NOT NULL,
		issuer TEXT,
		scopes TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_oauth_tokens_parent ON oauth_tokens (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_oauth_tokens_session ON oauth_tokens (session_id)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
