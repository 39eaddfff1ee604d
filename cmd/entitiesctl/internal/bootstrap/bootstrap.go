// Package bootstrap mints the first admin user and API key directly in
// the stack's database.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envgen"
	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrKeyGeneration is returned when key material cannot be produced.
	ErrKeyGeneration = errors.New("api key generation failed")
)

// adminKeyPrefix is prepended to generated admin keys.
const adminKeyPrefix = "ad_"

// keyDisplayPrefixLen is how many characters of the key identify it in
// listings and reports.
const keyDisplayPrefixLen = 8

// DefaultAdminName names the admin account when no name is given.
const DefaultAdminName = "Admin User"

// DefaultKeyName names the bootstrap-minted admin key when no name is
// given.
const DefaultKeyName = "Admin Bootstrap Key"

// =============================================================================
// ID Generation
// =============================================================================

// IDGenerator mints entity identifiers.
//
// Injected so tests can assert exact IDs.
type IDGenerator interface {
	// NewUserID returns a fresh user identifier.
	NewUserID() string

	// NewKeyID returns a fresh API key identifier.
	NewKeyID() string
}

// UUIDGenerator implements IDGenerator with random UUIDs.
//
// IDs carry the same prefixes the API itself uses so rows minted here
// are indistinguishable from rows minted by the service.
type UUIDGenerator struct{}

// NewUserID returns "user_" plus a dashless UUID.
func (g *UUIDGenerator) NewUserID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewKeyID returns "key_" plus a dashless UUID.
func (g *UUIDGenerator) NewKeyID() string {
	return "key_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// StaticIDGenerator returns fixed IDs, for tests.
type StaticIDGenerator struct {
	UserID string
	KeyID  string
}

// NewUserID returns the scripted user ID.
func (g *StaticIDGenerator) NewUserID() string { return g.UserID }

// NewKeyID returns the scripted key ID.
func (g *StaticIDGenerator) NewKeyID() string { return g.KeyID }

// Compile-time interface compliance checks.
var (
	_ IDGenerator = (*UUIDGenerator)(nil)
	_ IDGenerator = (*StaticIDGenerator)(nil)
)

// =============================================================================
// DSN Resolution
// =============================================================================

// ResolveDBURL picks the database URL from the configured sources.
//
// # Description
//
// Priority: explicit flag > DATABASE_URL > SPECIAL_DB_URL. The bootstrap
// usually runs on the host, outside the compose network, so in practice
// SPECIAL_DB_URL (the host-published port) is the one that works; the
// in-network URL still wins when set because operators who set it did so
// deliberately.
//
// # Outputs
//
//   - string: The chosen URL
//   - string: Which source provided it (for logging)
//   - error: ErrNoDatabaseURL when all sources are empty
func ResolveDBURL(flagURL, databaseURL, specialURL string) (string, string, error) {
	switch {
	case flagURL != "":
		return flagURL, "--db-url flag", nil
	case databaseURL != "":
		return databaseURL, "DATABASE_URL", nil
	case specialURL != "":
		return specialURL, "SPECIAL_DB_URL", nil
	default:
		return "", "", ErrNoDatabaseURL
	}
}

// =============================================================================
// Bootstrapper
// =============================================================================

// Options configures a bootstrap run.
type Options struct {
	// Email is the admin account email.
	Email string

	// FullName is the admin account name. Empty uses DefaultAdminName.
	FullName string

	// KeyName names the minted key. Empty uses DefaultKeyName.
	KeyName string

	// CredsPath is the credentials file to write. Empty skips the file.
	CredsPath string

	// EnvPath is the .env file to update. Empty skips the update.
	EnvPath string
}

// Outcome reports what a bootstrap run did.
type Outcome struct {
	// User is the admin user (found, promoted, or created).
	User *User

	// UserCreated is true when the user row was inserted this run.
	UserCreated bool

	// UserPromoted is true when an existing user was promoted this run.
	UserPromoted bool

	// KeyCreated is true when a key was minted this run.
	KeyCreated bool

	// KeyPrefix identifies the key (first characters of the plaintext).
	KeyPrefix string

	// KeyPlaintext is the full key, present ONLY when KeyCreated is true.
	// It is never stored and never appears again.
	KeyPlaintext string
}

// Bootstrapper performs the admin bootstrap against the database.
//
// # Description
//
// Three idempotent steps, each committed independently:
//
//  1. Find-or-create the admin user (promoting a non-admin match).
//  2. Ensure at most one active API key exists, minting one if needed.
//  3. Persist credentials to the creds file and .env.
//
// A step failure aborts the run without undoing earlier steps; re-running
// resumes where it left off. A second complete run makes no writes and
// reports existing state.
type Bootstrapper struct {
	store  Store
	tokens envgen.TokenSource
	ids    IDGenerator
	logger *logging.Logger
	now    func() time.Time
}

// New creates a Bootstrapper with injected dependencies.
//
// # Inputs
//
//   - store: Database access
//   - tokens: Secret material source
//   - ids: Identifier source
//   - logger: Destination for progress logs
func New(store Store, tokens envgen.TokenSource, ids IDGenerator, logger *logging.Logger) *Bootstrapper {
	return &Bootstrapper{
		store:  store,
		tokens: tokens,
		ids:    ids,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes the full bootstrap.
//
// # Outputs
//
//   - *Outcome: What happened, including the plaintext key when minted
//   - error: First step failure; earlier committed steps stand
func (b *Bootstrapper) Run(ctx context.Context, opts Options) (*Outcome, error) {
	outcome, err := b.ensureAdminUser(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := b.ensureAPIKey(ctx, outcome, opts.KeyName); err != nil {
		return outcome, err
	}

	if outcome.KeyCreated {
		creds := Credentials{
			AdminUserEmail: outcome.User.Email,
			AdminUserID:    outcome.User.ID,
			AdminKeyPrefix: outcome.KeyPrefix,
			AdminAPIKey:    outcome.KeyPlaintext,
		}
		if err := SaveCredentials(opts.CredsPath, opts.EnvPath, creds); err != nil {
			return outcome, err
		}
	}

	return outcome, nil
}

// ensureAdminUser finds, promotes, or creates the admin user.
func (b *Bootstrapper) ensureAdminUser(ctx context.Context, opts Options) (*Outcome, error) {
	outcome := &Outcome{}
	email := opts.Email

	user, err := b.store.UserByEmail(ctx, email)
	switch {
	case err == nil:
		outcome.User = user
		if !user.IsAdmin {
			b.logger.Info("existing user is not admin, promoting", "user_id", user.ID)
			if err := b.store.PromoteToAdmin(ctx, user.ID); err != nil {
				return nil, err
			}
			user.IsAdmin = true
			outcome.UserPromoted = true
		} else {
			b.logger.Info("admin user already exists", "user_id", user.ID)
		}

	case errors.Is(err, ErrUserNotFound):
		fullName := opts.FullName
		if fullName == "" {
			fullName = DefaultAdminName
		}
		now := b.now().UTC()
		user = &User{
			ID:            b.ids.NewUserID(),
			Email:         email,
			EmailVerified: true,
			OauthProvider: "local",
			FullName:      fullName,
			IsAdmin:       true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		b.logger.Info("creating admin user", "user_id", user.ID, "email", email)
		if err := b.store.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		outcome.User = user
		outcome.UserCreated = true

	default:
		return nil, err
	}

	return outcome, nil
}

// ensureAPIKey enforces at most one active key for the admin.
func (b *Bootstrapper) ensureAPIKey(ctx context.Context, outcome *Outcome, keyName string) error {
	existing, err := b.store.ActiveKey(ctx, outcome.User.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		b.logger.Info("active api key already exists", "prefix", existing.Prefix)
		outcome.KeyPrefix = existing.Prefix
		return nil
	}

	token, err := b.tokens.URLSafe(32)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	plaintext := adminKeyPrefix + token
	prefix := plaintext[:keyDisplayPrefixLen]

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	if keyName == "" {
		keyName = DefaultKeyName
	}
	key := &APIKey{
		ID:        b.ids.NewKeyID(),
		UserID:    outcome.User.ID,
		KeyName:   keyName,
		Prefix:    prefix,
		HashedKey: string(hash),
		IsActive:  true,
		CreatedAt: b.now().UTC(),
	}

	b.logger.Info("minting admin api key", "prefix", prefix)
	if err := b.store.InsertKey(ctx, key); err != nil {
		return err
	}

	outcome.KeyCreated = true
	outcome.KeyPrefix = prefix
	outcome.KeyPlaintext = plaintext
	return nil
}
