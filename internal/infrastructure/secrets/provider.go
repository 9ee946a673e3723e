// Package secrets resolves the process-wide signing secrets, either straight
// from configuration or from a Vault KV mount.
package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"github.com/oljc/arcoserve/internal/config"
	"github.com/oljc/arcoserve/internal/domain/service"
)

// staticProvider serves secrets from loaded configuration.
type staticProvider struct {
	jwtSecret     string
	signingSecret string
}

// NewStaticProvider returns a SecretProvider backed by config values.
func NewStaticProvider(jwtSecret, signingSecret string) service.SecretProvider {
	return &staticProvider{jwtSecret: jwtSecret, signingSecret: signingSecret}
}

func (p *staticProvider) JWTSecret(ctx context.Context) (string, error) {
	return p.jwtSecret, nil
}

func (p *staticProvider) SigningSecret(ctx context.Context) (string, error) {
	return p.signingSecret, nil
}

// vaultProvider reads both secrets from a single KV-v2 entry with `jwt_secret`
// and `signing_secret` fields.
type vaultProvider struct {
	client    *vault.Client
	mountPath string
	secretKey string
}

// NewVaultProvider connects to Vault and returns a SecretProvider reading from
// the configured mount.
func NewVaultProvider(cfg *config.VaultConfig) (service.SecretProvider, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &vaultProvider{
		client:    client,
		mountPath: cfg.MountPath,
		secretKey: cfg.SecretKey,
	}, nil
}

func (p *vaultProvider) JWTSecret(ctx context.Context) (string, error) {
	return p.readField(ctx, "jwt_secret")
}

func (p *vaultProvider) SigningSecret(ctx context.Context) (string, error) {
	return p.readField(ctx, "signing_secret")
}

func (p *vaultProvider) readField(ctx context.Context, field string) (string, error) {
	secret, err := p.client.KVv2(p.mountPath).Get(ctx, p.secretKey)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", p.secretKey, err)
	}
	value, ok := secret.Data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("vault secret %s missing field %s", p.secretKey, field)
	}
	return value, nil
}

// FromConfig picks the provider implied by configuration.
func FromConfig(cfg *config.Config) (service.SecretProvider, error) {
	if cfg.Vault.Enabled {
		return NewVaultProvider(&cfg.Vault)
	}
	return NewStaticProvider(cfg.JWT.Secret, cfg.Signature.SecretKey), nil
}
