package identity

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment selects the signing key strategy.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Secret names looked up for non development environments
const (
	StagingSecretName    = "STAGING_JWT_SECRET"
	ProductionSecretName = "PROD_JWT_SECRET"
)

// ParseEnvironment accepts the long names and the dev/prod aliases.
func ParseEnvironment(raw string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "dev", "development":
		return EnvDevelopment, nil
	case "staging", "stage":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	}
	return "", ErrConfiguration("unknown environment", map[string]any{"environment": raw})
}

// Config is resolved once at startup and treated as read only afterwards.
type Config struct {
	Environment    Environment
	JWTIssuer      string
	JWTAudience    []string
	TokenTTL       time.Duration
	ResetTokenTTL  time.Duration
	BcryptCost     int
	DatabaseDriver string
	DatabaseDSN    string
	RedisAddr      string
	PhoneRegion    string
	LogLevel       string

	// Secret returns an externally provisioned secret by name, or "".
	Secret func(name string) string
}

// LoadConfig reads the optional env files, then the process environment.
// Keys carry the IDENTITY_ prefix except the JWT secrets.
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, ErrConfiguration("failed to load env file", map[string]any{
				"file":  file,
				"error": err.Error(),
			})
		}
	}

	v := viper.New()
	v.SetEnvPrefix("IDENTITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ENVIRONMENT", string(EnvDevelopment))
	v.SetDefault("JWT_ISSUER", "go-identity")
	v.SetDefault("TOKEN_TTL", DefaultTokenTTL)
	v.SetDefault("RESET_TOKEN_TTL", DefaultResetTokenTTL)
	v.SetDefault("BCRYPT_COST", passwordHashCost())
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:identity.db?cache=shared")
	v.SetDefault("PHONE_REGION", "US")
	v.SetDefault("LOG_LEVEL", "info")

	_ = v.BindEnv("secrets.staging", StagingSecretName)
	_ = v.BindEnv("secrets.production", ProductionSecretName)

	env, err := ParseEnvironment(v.GetString("ENVIRONMENT"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:    env,
		JWTIssuer:      v.GetString("JWT_ISSUER"),
		JWTAudience:    splitList(v.GetString("JWT_AUDIENCE")),
		TokenTTL:       v.GetDuration("TOKEN_TTL"),
		ResetTokenTTL:  v.GetDuration("RESET_TOKEN_TTL"),
		BcryptCost:     v.GetInt("BCRYPT_COST"),
		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		PhoneRegion:    v.GetString("PHONE_REGION"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		Secret: func(name string) string {
			switch name {
			case StagingSecretName:
				return v.GetString("secrets.staging")
			case ProductionSecretName:
				return v.GetString("secrets.production")
			}
			return ""
		},
	}

	if cfg.TokenTTL <= 0 {
		return nil, ErrConfiguration("token ttl must be positive", map[string]any{"ttl": cfg.TokenTTL.String()})
	}
	if cfg.ResetTokenTTL <= 0 {
		return nil, ErrConfiguration("reset token ttl must be positive", map[string]any{"ttl": cfg.ResetTokenTTL.String()})
	}

	return cfg, nil
}

// ResolveSigningKey applies the key strategy of cfg.Environment.
// Development gets a fresh random key that is logged and never stored;
// staging and production must have their secret provisioned.
func ResolveSigningKey(cfg *Config, logger Logger) ([]byte, error) {
	if cfg == nil {
		return nil, ErrConfiguration("config is required", nil)
	}
	logger = normalizeLogger(logger)

	env, err := ParseEnvironment(string(cfg.Environment))
	if err != nil {
		return nil, err
	}

	switch env {
	case EnvDevelopment:
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, ErrConfiguration("failed to generate signing key", map[string]any{"error": err.Error()})
		}
		logger.Info("generated development JWT signing key", "key", base64.StdEncoding.EncodeToString(key))
		return key, nil
	case EnvStaging:
		return requiredSecret(cfg, StagingSecretName)
	default:
		return requiredSecret(cfg, ProductionSecretName)
	}
}

func requiredSecret(cfg *Config, name string) ([]byte, error) {
	var secret string
	if cfg.Secret != nil {
		secret = strings.TrimSpace(cfg.Secret(name))
	}
	if secret == "" {
		return nil, ErrConfiguration(name+" environment variable not set", map[string]any{
			"environment": string(cfg.Environment),
			"secret":      name,
		})
	}
	return []byte(secret), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
