// Package auth provides HMAC-based API key authentication for gRPC services.
//
// Each API key belongs to one project. The interceptor resolves the key to
// its project; handlers call Authorize before touching a toggle so a key can
// never read or publish another project's targeting.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/flagkeeper/internal/types"
)

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// projectKey is the context key for the authenticated project.
const projectKey = contextKey("project_key")

// Queries defines the named-query operations authentication needs.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Secrets are held in memory by secret_id; keys are looked up by hash.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

// Authenticate validates an API key and returns the project it is scoped to.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (string, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		ProjectKey string       `db:"project_key"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps busy editors from writing on every call
	if shouldUpdateLastUsed(result.LastUsedAt, a.now()) {
		_, _ = a.queries.Exec(ctx, "update-last-used", a.now().UTC(), result.APIKeyID)
	}

	return result.ProjectKey, nil
}

// Issue mints and stores a new API key for projectKey under secretID.
// The plaintext key is returned once; only its HMAC is stored.
func (a *Authenticator) Issue(ctx context.Context, projectKey, name, secretID string) (id, apiKey string, err error) {
	secret, ok := a.secrets[secretID]
	if !ok {
		return "", "", ErrUnknownKey
	}
	apiKey, err = GenerateAPIKey(secretID)
	if err != nil {
		return "", "", err
	}

	id = uuid.Must(uuid.NewV7()).String()
	if _, err := a.queries.Exec(ctx, "insert-api-key",
		id, projectKey, name, secretID, ComputeHMAC(secret, apiKey), a.now().UTC(),
	); err != nil {
		return "", "", fmt.Errorf("store api key: %w", err)
	}
	return id, apiKey, nil
}

// Revoke marks an API key revoked. Revoking twice is not an error.
func (a *Authenticator) Revoke(ctx context.Context, id string) error {
	if _, err := a.queries.Exec(ctx, "revoke-api-key", a.now().UTC(), id); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isHealthMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(MetadataKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		project, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStore):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithProject(ctx, project), req)
	}
}

func isHealthMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/")
}

// WithProject returns ctx carrying an authenticated project.
func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, projectKey, project)
}

// ProjectFromContext extracts the authenticated project.
// Returns empty string if not found.
func ProjectFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(projectKey).(string); ok {
		return p
	}
	return ""
}

// Authorize checks that the authenticated project owns key.
func Authorize(ctx context.Context, key types.ToggleKey) error {
	return AuthorizeProject(ctx, key.Project)
}

// AuthorizeProject checks that the request is authenticated for project.
func AuthorizeProject(ctx context.Context, project string) error {
	if p := ProjectFromContext(ctx); p == "" || p != project {
		return ErrWrongProject
	}
	return nil
}
