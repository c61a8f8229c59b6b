package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultDBMaxConns          = 10
	defaultDBConnectTimeout    = 10 * time.Second
	defaultRedisDB             = 0
	defaultAuthMode            = AuthModeFirebase
	defaultJWTIssuer           = "clover-studio"
	defaultOrderTopic          = "marketplace-events"
	defaultSecurityEnvironment = "local"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultScheduleLead        = 24 * time.Hour
	defaultPremiumThreshold    = "30000.00"
	defaultSecretsLocalFile    = ".secrets.local"
)

const (
	// AuthModeFirebase verifies Firebase ID tokens.
	AuthModeFirebase = "firebase"
	// AuthModeJWT verifies locally signed HS256 tokens.
	AuthModeJWT = "jwt"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Events      EventsConfig
	Secrets     SecretsConfig
	Idempotency IdempotencyConfig
	Orders      OrdersConfig
	Catalog     CatalogConfig
	Security    SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the postgres pool.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
	MigrateOnStart  bool
}

// RedisConfig configures the idempotency store. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig selects and configures the bearer token verifier.
type AuthConfig struct {
	Mode                    string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	JWTSecret               string
	JWTIssuer               string
}

// EventsConfig configures domain event publishing. An empty Topic disables publishing.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// SecretsConfig configures Secret Manager resolution.
type SecretsConfig struct {
	ProjectID string
	LocalFile string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// OrdersConfig holds order lifecycle tunables.
type OrdersConfig struct {
	DefaultScheduleLead time.Duration
}

// CatalogConfig holds catalogue tunables.
type CatalogConfig struct {
	PremiumThreshold decimal.Decimal
}

// SecurityConfig groups deployment-level security settings.
type SecurityConfig struct {
	Environment string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved empty.
type MissingSecretsError struct {
	names []string
}

func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.names) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed secret identifiers safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Auth.JWTSecret") that must resolve non-empty.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	dotEnv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}, nil
}

// Value returns a single raw setting using the same precedence as Load. It lets callers
// build dependencies (such as the secret fetcher) before the full configuration loads.
func Value(key string, opts ...Option) (string, error) {
	lookup, err := newLoaderOptions(opts).lookup()
	if err != nil {
		return "", err
	}
	value, _ := lookup(key)
	return strings.TrimSpace(value), nil
}

// Load assembles the configuration from defaults, .env, the process environment,
// explicit overrides and Secret Manager references, in increasing precedence.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	var invalid []string
	premium, err := decimal.NewFromString(stringWithDefault(lookup, "CLOVER_CATALOG_PREMIUM_THRESHOLD", defaultPremiumThreshold))
	if err != nil {
		invalid = append(invalid, "Catalog.PremiumThreshold")
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "CLOVER_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "CLOVER_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "CLOVER_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "CLOVER_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "CLOVER_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Database: DatabaseConfig{
			URL:             stringWithDefault(lookup, "CLOVER_DATABASE_URL", ""),
			MaxConns:        intWithDefault(lookup, "CLOVER_DATABASE_MAX_CONNS", defaultDBMaxConns),
			MinConns:        intWithDefault(lookup, "CLOVER_DATABASE_MIN_CONNS", 0),
			MaxConnLifetime: durationWithDefault(lookup, "CLOVER_DATABASE_MAX_CONN_LIFETIME", 0),
			ConnectTimeout:  durationWithDefault(lookup, "CLOVER_DATABASE_CONNECT_TIMEOUT", defaultDBConnectTimeout),
			MigrateOnStart:  boolWithDefault(lookup, "CLOVER_DATABASE_MIGRATE_ON_START", true),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "CLOVER_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "CLOVER_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "CLOVER_REDIS_DB", defaultRedisDB),
		},
		Auth: AuthConfig{
			Mode:                    strings.ToLower(stringWithDefault(lookup, "CLOVER_AUTH_MODE", defaultAuthMode)),
			FirebaseProjectID:       stringWithDefault(lookup, "CLOVER_FIREBASE_PROJECT_ID", ""),
			FirebaseCredentialsFile: stringWithDefault(lookup, "CLOVER_FIREBASE_CREDENTIALS_FILE", ""),
			JWTSecret:               stringWithDefault(lookup, "CLOVER_AUTH_JWT_SECRET", ""),
			JWTIssuer:               stringWithDefault(lookup, "CLOVER_AUTH_JWT_ISSUER", defaultJWTIssuer),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "CLOVER_EVENTS_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "CLOVER_EVENTS_TOPIC", defaultOrderTopic),
		},
		Secrets: SecretsConfig{
			ProjectID: stringWithDefault(lookup, "CLOVER_SECRETS_PROJECT_ID", ""),
			LocalFile: stringWithDefault(lookup, "CLOVER_SECRETS_LOCAL_FILE", defaultSecretsLocalFile),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "CLOVER_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    durationWithDefault(lookup, "CLOVER_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		Orders: OrdersConfig{
			DefaultScheduleLead: durationWithDefault(lookup, "CLOVER_ORDERS_DEFAULT_SCHEDULE_LEAD", defaultScheduleLead),
		},
		Catalog: CatalogConfig{
			PremiumThreshold: premium,
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, "CLOVER_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
		},
	}

	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Auth.FirebaseProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Auth.FirebaseProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Database.URL", &cfg.Database.URL},
		{"Redis.Password", &cfg.Redis.Password},
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		missing = append(missing, "Database.URL")
	}
	if cfg.Database.MaxConns <= 0 || cfg.Database.MinConns < 0 || cfg.Database.MinConns > cfg.Database.MaxConns {
		missing = append(missing, "Database.MaxConns")
	}
	switch cfg.Auth.Mode {
	case AuthModeFirebase:
		if cfg.Auth.FirebaseProjectID == "" {
			missing = append(missing, "Auth.FirebaseProjectID")
		}
	case AuthModeJWT:
		if len(cfg.Auth.JWTSecret) < 32 {
			missing = append(missing, "Auth.JWTSecret")
		}
	default:
		missing = append(missing, "Auth.Mode")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Orders.DefaultScheduleLead <= 0 {
		missing = append(missing, "Orders.DefaultScheduleLead")
	}
	if cfg.Catalog.PremiumThreshold.IsNegative() {
		missing = append(missing, "Catalog.PremiumThreshold")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	var names []string
	seen := make(map[string]struct{})
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &MissingSecretsError{names: names}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
