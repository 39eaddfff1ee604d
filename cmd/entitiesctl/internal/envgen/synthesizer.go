package envgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/infra/compose"
	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrProviderFailed is returned when a provider cannot produce its vars.
	ErrProviderFailed = errors.New("env provider failed")
)

// dbService is the compose service holding the MySQL container.
const dbService = "db"

// mysqlContainerPort is the container-side MySQL port.
const mysqlContainerPort = 3306

// =============================================================================
// Provider Interface
// =============================================================================

// Provider contributes environment variables to the synthesized set.
//
// # Description
//
// Providers run in an explicit order and may only fill keys that earlier
// providers left unset. `have` is the merged result of all earlier
// providers; a provider may consult it (the derived-URL provider does) but
// never modifies it.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Provide returns this provider's variables.
	Provide(ctx context.Context, have *EnvVars) (*EnvVars, error)
}

// =============================================================================
// Synthesizer
// =============================================================================

// Synthesizer merges providers into a complete environment.
//
// # Description
//
// Runs an explicit, ordered provider list. Earlier providers take
// precedence: a key set by provider N is never overwritten by provider
// N+1. The standard chain (see NewStandardSynthesizer) is:
//
//  1. compose file values
//  2. fixed defaults
//  3. generated secrets
//  4. derived database URLs
//
// With a fixed TokenSource the output is fully deterministic.
//
// # Thread Safety
//
// Synthesizer is safe for concurrent use; providers must be too.
type Synthesizer struct {
	providers []Provider
	logger    *logging.Logger
}

// NewSynthesizer creates a synthesizer with an explicit provider list.
//
// # Inputs
//
//   - logger: Destination for per-provider progress (must not be nil)
//   - providers: Providers in precedence order, highest first
func NewSynthesizer(logger *logging.Logger, providers ...Provider) *Synthesizer {
	return &Synthesizer{
		providers: providers,
		logger:    logger,
	}
}

// NewStandardSynthesizer wires the standard provider chain.
//
// # Inputs
//
//   - logger: Destination for per-provider progress
//   - file: Parsed compose file (may be nil when no compose file exists)
//   - tokens: Source for generated secrets
//
// # Example
//
//	synth := envgen.NewStandardSynthesizer(logger, cfg, envgen.NewCryptoTokenSource())
//	vars, err := synth.Synthesize(ctx)
func NewStandardSynthesizer(logger *logging.Logger, file *compose.File, tokens TokenSource) *Synthesizer {
	return NewSynthesizer(logger,
		&ComposeProvider{File: file},
		&DefaultsProvider{},
		&SecretsProvider{Tokens: tokens},
		&DerivedProvider{File: file},
	)
}

// Synthesize runs all providers and returns the merged environment.
//
// # Outputs
//
//   - *EnvVars: Complete merged environment
//   - error: ErrProviderFailed (wrapped) if any provider fails
func (s *Synthesizer) Synthesize(ctx context.Context) (*EnvVars, error) {
	merged := EmptyEnvVars()

	for _, p := range s.providers {
		vars, err := p.Provide(ctx, merged)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, p.Name(), err)
		}

		before := merged.Len()
		merged = merged.AddMissing(vars)
		s.logger.Debug("env provider applied",
			"provider", p.Name(),
			"offered", vars.Len(),
			"accepted", merged.Len()-before,
		)
	}

	return merged, nil
}

// =============================================================================
// Compose Provider
// =============================================================================

// composeEnvKeys are the keys lifted from the db service environment.
var composeEnvKeys = []string{
	"MYSQL_ROOT_PASSWORD",
	"MYSQL_DATABASE",
	"MYSQL_USER",
	"MYSQL_PASSWORD",
}

// ComposeProvider lifts database settings from the compose file.
//
// Values declared on the db service win over everything else: the
// containers will boot with those values, so the synthesized environment
// must agree with them.
type ComposeProvider struct {
	// File is the parsed compose document. Nil means no compose file.
	File *compose.File
}

// Name identifies the provider.
func (p *ComposeProvider) Name() string { return "compose" }

// Provide returns the db service values present in the compose file.
func (p *ComposeProvider) Provide(ctx context.Context, have *EnvVars) (*EnvVars, error) {
	vars := EmptyEnvVars()
	if p.File == nil {
		return vars, nil
	}

	for _, key := range composeEnvKeys {
		if value, ok := p.File.EnvValue(dbService, key); ok {
			vars.MustAdd(key, value, isSensitiveKey(key))
		}
	}
	return vars, nil
}

// =============================================================================
// Defaults Provider
// =============================================================================

// DefaultsProvider supplies fixed defaults for the stack.
type DefaultsProvider struct{}

// Name identifies the provider.
func (p *DefaultsProvider) Name() string { return "defaults" }

// Provide returns the fixed default values.
func (p *DefaultsProvider) Provide(ctx context.Context, have *EnvVars) (*EnvVars, error) {
	return MustNewEnvVars(
		EnvVar{Key: "ASSISTANTS_BASE_URL", Value: "http://api:9000"},
		EnvVar{Key: "SANDBOX_SERVER_URL", Value: "http://sandbox:8000"},
		EnvVar{Key: "DOWNLOAD_BASE_URL", Value: "http://api:9000/v1/files/download"},
		EnvVar{Key: "HYPERBOLIC_BASE_URL", Value: "https://api.hyperbolic.xyz/v1"},
		EnvVar{Key: "QDRANT_URL", Value: "http://qdrant:6333"},
		EnvVar{Key: "MYSQL_HOST", Value: "db"},
		EnvVar{Key: "MYSQL_PORT", Value: "3306"},
		EnvVar{Key: "MYSQL_DATABASE", Value: "cosmic_catalyst"},
		EnvVar{Key: "MYSQL_USER", Value: "ollama"},
		EnvVar{Key: "BASE_URL_HEALTH", Value: "http://api:9000/v1/health"},
		EnvVar{Key: "SHELL_SERVER_URL", Value: "ws://sandbox:8000/ws/computer"},
		EnvVar{Key: "CODE_EXECUTION_URL", Value: "ws://sandbox:8000/ws/execute"},
		EnvVar{Key: "DISABLE_FIREJAIL", Value: "true"},
		EnvVar{Key: "SMBCLIENT_SERVER", Value: "samba_server"},
		EnvVar{Key: "SMBCLIENT_SHARE", Value: "cosmic_share"},
		EnvVar{Key: "SMBCLIENT_USERNAME", Value: "samba_user"},
		EnvVar{Key: "SMBCLIENT_PASSWORD", Value: "default", Sensitive: true},
		EnvVar{Key: "SMBCLIENT_PORT", Value: "445"},
		EnvVar{Key: "LOG_LEVEL", Value: "INFO"},
		EnvVar{Key: "PYTHONUNBUFFERED", Value: "1"},
	), nil
}

// =============================================================================
// Secrets Provider
// =============================================================================

// generatedSecret describes one hex-token secret.
type generatedSecret struct {
	key   string
	bytes int
}

// generatedSecrets lists the hex-token secrets minted when absent.
var generatedSecrets = []generatedSecret{
	{key: "SIGNED_URL_SECRET", bytes: 32},
	{key: "API_KEY", bytes: 16},
	{key: "SECRET_KEY", bytes: 32},
	{key: "DEFAULT_SECRET_KEY", bytes: 32},
}

// generatedToolIDKeys lists the tool identifier keys minted when absent.
var generatedToolIDKeys = []string{
	"TOOL_CODE_INTERPRETER",
	"TOOL_WEB_SEARCH",
	"TOOL_COMPUTER",
	"TOOL_VECTOR_STORE_SEARCH",
}

// SecretsProvider mints secrets and identifiers not supplied upstream.
//
// # Description
//
// Produces application secrets (hex tokens), MySQL passwords (URL-safe
// tokens) as a fallback when the compose file doesn't pin them, tool
// identifiers of the form "tool_<hex>", and a shared bootstrap admin key
// "ad_<urlsafe>" published under both BOOTSTRAP_ADMIN_API_KEY and
// ADMIN_API_KEY so the API container and the operator tooling agree.
type SecretsProvider struct {
	Tokens TokenSource
}

// Name identifies the provider.
func (p *SecretsProvider) Name() string { return "secrets" }

// Provide mints the generated secret set.
func (p *SecretsProvider) Provide(ctx context.Context, have *EnvVars) (*EnvVars, error) {
	vars := EmptyEnvVars()

	for _, s := range generatedSecrets {
		token, err := p.Tokens.Hex(s.bytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", s.key, err)
		}
		vars.MustAdd(s.key, token, true)
	}

	for _, key := range []string{"MYSQL_ROOT_PASSWORD", "MYSQL_PASSWORD"} {
		token, err := p.Tokens.URLSafe(16)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", key, err)
		}
		vars.MustAdd(key, token, true)
	}

	for _, key := range generatedToolIDKeys {
		token, err := p.Tokens.Hex(10)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", key, err)
		}
		vars.MustAdd(key, "tool_"+token, false)
	}

	// One shared admin key: the API container bootstraps with it and the
	// operator scripts authenticate with it.
	adminToken, err := p.Tokens.URLSafe(32)
	if err != nil {
		return nil, fmt.Errorf("generate admin key: %w", err)
	}
	adminKey := "ad_" + adminToken
	vars.MustAdd("BOOTSTRAP_ADMIN_API_KEY", adminKey, true)
	vars.MustAdd("ADMIN_API_KEY", adminKey, true)

	return vars, nil
}

// =============================================================================
// Derived Provider
// =============================================================================

// DerivedProvider computes database URLs from the merged settings.
//
// # Description
//
// DATABASE_URL targets the in-network MySQL host, SPECIAL_DB_URL targets
// the host-published port so tooling running outside the compose network
// (the admin bootstrap) can reach the same database. The published port
// comes from the compose file's db service; when the compose file doesn't
// publish 3306 the container port is assumed.
type DerivedProvider struct {
	// File is consulted for the published MySQL host port. May be nil.
	File *compose.File
}

// Name identifies the provider.
func (p *DerivedProvider) Name() string { return "derived-urls" }

// Provide computes DATABASE_URL and SPECIAL_DB_URL.
func (p *DerivedProvider) Provide(ctx context.Context, have *EnvVars) (*EnvVars, error) {
	user := have.Get("MYSQL_USER")
	password := have.Get("MYSQL_PASSWORD")
	host := have.Get("MYSQL_HOST")
	port := have.Get("MYSQL_PORT")
	database := have.Get("MYSQL_DATABASE")

	vars := EmptyEnvVars()
	vars.MustAdd("DATABASE_URL", buildDatabaseURL(user, password, host, port, database), true)

	hostPort := port
	if p.File != nil {
		if published, ok := p.File.HostPort(dbService, mysqlContainerPort); ok {
			hostPort = published
		}
	}
	vars.MustAdd("SPECIAL_DB_URL", buildDatabaseURL(user, password, "localhost", hostPort, database), true)

	return vars, nil
}

// buildDatabaseURL assembles a SQLAlchemy-style MySQL URL.
//
// The password is strictly percent-encoded so reserved characters
// (@ : / #) can't corrupt the URL structure.
func buildDatabaseURL(user, password, host, port, database string) string {
	return fmt.Sprintf("mysql+pymysql://%s:%s@%s:%s/%s",
		user, percentEncode(password), host, port, database)
}

// percentEncode encodes every byte outside the RFC 3986 unreserved set.
func percentEncode(s string) string {
	const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// =============================================================================
// Static Provider
// =============================================================================

// StaticProvider contributes a fixed set of variables.
//
// Used by the CLI layer to feed resolved values (SHARED_PATH) into the
// chain at the right precedence.
type StaticProvider struct {
	ProviderName string
	Vars         *EnvVars
}

// Name identifies the provider.
func (p *StaticProvider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "static"
}

// Provide returns the fixed variables.
func (p *StaticProvider) Provide(ctx context.Context, have *EnvVars) (*EnvVars, error) {
	if p.Vars == nil {
		return EmptyEnvVars(), nil
	}
	return p.Vars.Clone(), nil
}

// Compile-time provider compliance checks.
var (
	_ Provider = (*ComposeProvider)(nil)
	_ Provider = (*DefaultsProvider)(nil)
	_ Provider = (*SecretsProvider)(nil)
	_ Provider = (*DerivedProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)
