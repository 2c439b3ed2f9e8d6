package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretStore abstracts secret retrieval so deployments can swap in a
// vault-backed implementation.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, fallback string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %s not found", key)
	}
	return value, nil
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, fallback string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

var _ SecretStore = (*EnvironmentSecretStore)(nil)

// LoadSecretsFromEnv pulls sensitive values from the secret store so they
// never need to live in a config file.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	store := NewEnvironmentSecretStore()

	if v := store.GetWithDefault(ctx, "SCOREKIT_SQL_DSN", ""); v != "" {
		c.Storage.SQL.DSN = v
	}
	if v := store.GetWithDefault(ctx, "SCOREKIT_REDIS_PASSWORD", ""); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := store.GetWithDefault(ctx, "SCOREKIT_API_KEYS", ""); v != "" {
		keys := strings.Split(v, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		c.Security.APIKeys = keys
	}
	return nil
}
