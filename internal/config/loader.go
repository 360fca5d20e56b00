package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/architeacher/svc-icqueue/internal/ports"
	"github.com/hashicorp/vault/api"
	"github.com/kelseyhightower/envconfig"
	amqp "github.com/rabbitmq/amqp091-go"
)

const redacted = "xxxxx"

var errSecretStorageDisabled = errors.New("secret storage is not enabled")

// Loader handles configuration loading and reloading.
//
// Load writes the secrets into the config the clients are built from and must
// run before any of them start. Reloads never touch that config: they build a
// new snapshot that Config and DumpConfig expose, while the connected broker,
// database and cache keep their startup credentials until the process restarts.
type Loader struct {
	mu               sync.RWMutex
	cfg              *ServiceConfig
	reloaded         *ServiceConfig
	secretsRepo      ports.SecretsRepository
	configSignalChan chan os.Signal
	reloadErrors     chan error
	ticker           *time.Ticker
	lastVersion      uint
	out              io.Writer
	retryDelay       time.Duration
}

// NewLoader creates a new config loader instance.
func NewLoader(cfg *ServiceConfig, secretsRepo ports.SecretsRepository, initialVersion uint) *Loader {
	return &Loader{
		cfg:              cfg,
		secretsRepo:      secretsRepo,
		configSignalChan: make(chan os.Signal, 1),
		reloadErrors:     make(chan error, 1),
		lastVersion:      initialVersion,
		out:              os.Stdout,
		retryDelay:       time.Second,
	}
}

// WatchConfigSignals monitors for SIGHUP (reload) and SIGUSR1 (dump) signals.
// It also starts a background ticker for periodic config reloading if enabled.
// It returns a channel that will receive reload errors for logging by the caller.
func (l *Loader) WatchConfigSignals(ctx context.Context) <-chan error {
	signal.Notify(l.configSignalChan, syscall.SIGHUP, syscall.SIGUSR1)

	if l.cfg.SecretStorage.Enabled && l.cfg.SecretStorage.PollInterval > 0 {
		l.ticker = time.NewTicker(l.cfg.SecretStorage.PollInterval)
	}

	go func() {
		defer signal.Stop(l.configSignalChan)
		defer close(l.reloadErrors)

		if l.ticker != nil {
			defer l.ticker.Stop()
		}

		var reloadTickerChan <-chan time.Time
		if l.ticker != nil {
			reloadTickerChan = l.ticker.C
		}

		for {
			select {
			case <-ctx.Done():
				return

			case <-reloadTickerChan:
				l.handleConfigReload(ctx)

			case sig := <-l.configSignalChan:
				switch sig {
				case syscall.SIGHUP:
					l.handleConfigReload(ctx)

				case syscall.SIGUSR1:
					l.DumpConfig()
				}
			}
		}
	}()

	return l.reloadErrors
}

// Config returns a copy of the latest configuration, including reloaded secrets.
func (l *Loader) Config() ServiceConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.reloaded != nil {
		return *l.reloaded
	}

	return *l.cfg
}

// DumpConfig outputs the current configuration as JSON. Credentials are never printed.
func (l *Loader) DumpConfig() {
	snapshot := l.Config()
	snapshot.Queue.URL = redactURL(snapshot.Queue.URL)

	configJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		fmt.Fprintf(l.out, "Error marshaling config: %v\n", err)

		return
	}

	fmt.Fprintf(l.out, "\n=== Configuration Dump ===\n%s\n=== End Configuration ===\n\n", string(configJSON))
}

// Load config from the secrets' repository and returns the version of the secrets it applied.
func (l *Loader) Load(ctx context.Context) (uint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loadInto(ctx, l.cfg)
}

// reload fetches the secrets into a copy of the latest configuration.
func (l *Loader) reload(ctx context.Context) error {
	next := l.Config()

	if _, err := l.loadInto(ctx, &next); err != nil {
		return err
	}

	l.mu.Lock()
	l.reloaded = &next
	l.mu.Unlock()

	return nil
}

func (l *Loader) loadInto(ctx context.Context, cfg *ServiceConfig) (uint, error) {
	if !cfg.SecretStorage.Enabled {
		return 0, errSecretStorageDisabled
	}

	if err := l.authenticateVault(ctx, cfg.SecretStorage); err != nil {
		return 0, fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	data, err := l.loadSecretsFromPath(ctx, "data")
	if err != nil {
		return 0, fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	applySecretsToConfig(cfg, data)

	metadata, err := l.loadSecretsFromPath(ctx, "metadata")
	if err != nil {
		return 0, fmt.Errorf("failed to load secret metadata: %w", err)
	}

	version, err := getSecretVersion(metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to get secret version: %w", err)
	}

	l.lastVersion = version

	return version, nil
}

// Init config from environment variables.
func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if len(ServiceVersion) != 0 {
		cfg.AppConfig.ServiceVersion = ServiceVersion
	}

	if len(CommitSHA) != 0 {
		cfg.AppConfig.CommitSHA = CommitSHA
	}

	return cfg, nil
}

func (l *Loader) authenticateVault(ctx context.Context, config SecretStorageConfig) error {
	switch strings.ToLower(config.AuthMethod) {
	case "token":
		if config.Token == "" {
			return errors.New("token is required for token auth method")
		}

		l.secretsRepo.SetToken(config.Token)

		return nil

	case "approle":
		if config.RoleID == "" || config.SecretID == "" {
			return errors.New("role_id and secret_id are required for approle auth method")
		}

		data := map[string]any{
			"role_id":   config.RoleID,
			"secret_id": config.SecretID,
		}

		resp, err := l.secretsRepo.WriteWithContext(ctx, "auth/approle/login", data)
		if err != nil {
			return fmt.Errorf("failed to authenticate via approle: %w", err)
		}

		if resp == nil || resp.Auth == nil {
			return errors.New("no auth info returned from Vault")
		}

		l.secretsRepo.SetToken(resp.Auth.ClientToken)

		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", config.AuthMethod)
	}
}

func (l *Loader) handleConfigReload(ctx context.Context) {
	if !l.cfg.SecretStorage.Enabled {
		return
	}

	metadata, err := l.loadSecretsFromPath(ctx, "metadata")
	if err != nil {
		l.reportReloadStatus(fmt.Errorf("failed to load secret metadata: %w", err))

		return
	}

	currentVersion, err := getSecretVersion(metadata)
	if err != nil {
		l.reportReloadStatus(fmt.Errorf("failed to get secret version: %w", err))

		return
	}

	if currentVersion == l.lastVersion {
		return
	}

	if err := l.reload(ctx); err != nil {
		l.reportReloadStatus(err)

		return
	}

	l.reportReloadStatus(nil)
}

func (l *Loader) getSecretsWithRetry(ctx context.Context, path string) (*api.Secret, error) {
	cfg := l.cfg.SecretStorage

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var (
		secret *api.Secret
		err    error
	)

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		secret, err = l.secretsRepo.GetSecrets(ctx, path)
		if err == nil {
			break
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to read from path %s: %w", path, ctx.Err())
			case <-time.After(time.Duration(attempt+1) * l.retryDelay):
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read from path %s after %d retries: %w", path, cfg.MaxRetries, err)
	}

	return secret, nil
}

func getSecretVersion(metadata map[string]any) (uint, error) {
	if metadata == nil {
		return 0, nil
	}

	currentVersion, ok := metadata["current_version"]
	if !ok {
		return 0, nil
	}

	switch v := currentVersion.(type) {
	case float64:
		return uint(v), nil
	case uint:
		return v, nil
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("failed to parse version: %w", err)
		}

		return uint(version), nil
	default:
		return 0, fmt.Errorf("unexpected version type: %T", currentVersion)
	}
}

// loadSecretsFromPath reads a KV v2 secret, where pathType is either "data" or "metadata".
func (l *Loader) loadSecretsFromPath(ctx context.Context, pathType string) (map[string]any, error) {
	mountPath := l.cfg.SecretStorage.MountPath
	path := fmt.Sprintf("apps/%s/%s", pathType, mountPath)

	secret, err := l.getSecretsWithRetry(ctx, path)
	if err != nil {
		return nil, err
	}

	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	if pathType == "metadata" {
		return secret.Data, nil
	}

	result, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid secret format at path %s, missing 'data' key", path)
	}

	return result, nil
}

// applySecretsToConfig applies flat key-value pairs stored in Vault.
func applySecretsToConfig(cfg *ServiceConfig, data map[string]any) {
	for key, value := range data {
		if strValue, ok := value.(string); ok && strValue != "" {
			applySecretToConfig(cfg, key, strValue)
		}
	}
}

func applySecretToConfig(cfg *ServiceConfig, key, value string) {
	switch key {
	// Broker secrets
	case "RABBITMQ_URL":
		cfg.Queue.URL = value
	case "RABBITMQ_USERNAME":
		cfg.Queue.Username = value
	case "RABBITMQ_PASSWORD":
		cfg.Queue.Password = value
	case "RABBITMQ_HOST":
		cfg.Queue.Host = value

	// Database secrets
	case "POSTGRES_USERNAME":
		cfg.Storage.Username = value
	case "POSTGRES_PASSWORD":
		cfg.Storage.Password = value
	case "POSTGRES_HOST":
		cfg.Storage.Host = value

	// Cache secrets
	case "REDIS_ADDR":
		cfg.Cache.Addr = value
	case "REDIS_PASSWORD":
		cfg.Cache.Password = value
	}
}

// reportReloadStatus sends reload status (error or nil for success) to reloadErrors channel.
// It uses non-blocking send to avoid blocking if no receiver is ready.
func (l *Loader) reportReloadStatus(err error) {
	select {
	case l.reloadErrors <- err:
	default:
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	uri, err := amqp.ParseURI(raw)
	if err != nil {
		return redacted
	}

	uri.Password = redacted

	return uri.String()
}
