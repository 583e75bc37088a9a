package e3kit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
)

// BrainKeyParams are the Argon2id costs used to turn a password into a
// recovery key pair. Memory is in KiB.
type BrainKeyParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultBrainKeyParams returns the costs used when none are configured.
func DefaultBrainKeyParams() BrainKeyParams {
	p := crypto.DefaultBrainKeyParams()
	return BrainKeyParams{Time: p.Time, Memory: p.Memory, Threads: p.Threads}
}

// config holds configuration shared by every EThree a Factory creates.
type config struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	retryOn    []int

	keyStorage KeyStorage
	directory  Directory
	cloud      CloudStore
	crypto     CryptoProvider
	brainKey   BrainKeyParams
	logger     *slog.Logger
}

// Option configures a Factory or Initialize.
type Option func(*config)

// EncryptOption configures a single Encrypt call.
type EncryptOption func(*encryptConfig)

type encryptConfig struct {
	withoutSelf bool
}

// WithBaseURL sets the URL of the directory and cloud server. It is used
// for whichever of Directory and CloudStore is not set explicitly.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithRetries enables retries for idempotent requests (card lookups and
// cloud reads). Publishing and cloud writes are never retried. Default: 0.
func WithRetries(count int) Option {
	return func(c *config) {
		c.retries = count
	}
}

// WithRetryOn sets the HTTP status codes that trigger a retry.
// Default: [408, 429, 500, 502, 503, 504]
func WithRetryOn(statusCodes []int) Option {
	return func(c *config) {
		c.retryOn = statusCodes
	}
}

// WithKeyStorage sets local private key storage. Default: in memory.
func WithKeyStorage(s KeyStorage) Option {
	return func(c *config) {
		c.keyStorage = s
	}
}

// WithDirectory sets the card directory, replacing the HTTP client.
func WithDirectory(d Directory) Option {
	return func(c *config) {
		c.directory = d
	}
}

// WithCloudStore sets the cloud store, replacing the HTTP client.
func WithCloudStore(s CloudStore) Option {
	return func(c *config) {
		c.cloud = s
	}
}

// WithCryptoProvider replaces the built-in primitives.
func WithCryptoProvider(p CryptoProvider) Option {
	return func(c *config) {
		c.crypto = p
	}
}

// WithBrainKeyParams sets the Argon2id costs of the built-in provider. All
// devices of one identity must use the same values.
func WithBrainKeyParams(p BrainKeyParams) Option {
	return func(c *config) {
		c.brainKey = p
	}
}

// WithLogger sets the logger. Identities are fingerprinted and secrets
// redacted before records reach it. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithoutSelf leaves the caller's own key out of the recipients, so the
// author cannot decrypt the result.
func WithoutSelf() EncryptOption {
	return func(c *encryptConfig) {
		c.withoutSelf = true
	}
}
