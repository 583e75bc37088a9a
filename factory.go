package e3kit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vaultsandbox/e3kit-go/internal/keylock"
	"github.com/vaultsandbox/e3kit-go/internal/logging"
)

// Factory creates EThree managers that share collaborators and a
// per-identity lock table. Managers for the same identity created by one
// Factory never run mutating operations concurrently. With a LocalKeyStorage
// the table belongs to the storage, so this also holds across factories.
type Factory struct {
	keys      KeyStorage
	directory Directory
	cloud     CloudStore
	crypto    CryptoProvider
	log       *slog.Logger
	locks     *keylock.Table
}

// lockScoped is implemented by key storages that carry their own lock table.
type lockScoped interface {
	lockTable() *keylock.Table
}

// NewFactory builds the collaborators described by opts. A base URL is
// required unless both WithDirectory and WithCloudStore are given. It does
// not touch the network.
func NewFactory(opts ...Option) (*Factory, error) {
	cfg := &config{
		brainKey: DefaultBrainKeyParams(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &Factory{
		keys:      cfg.keyStorage,
		directory: cfg.directory,
		cloud:     cfg.cloud,
		crypto:    cfg.crypto,
	}

	if f.crypto == nil {
		p, err := NewCryptoProvider(cfg.brainKey)
		if err != nil {
			return nil, err
		}
		f.crypto = p
	}
	if f.keys == nil {
		f.keys = NewMemoryKeyStorage()
	}
	if ls, ok := f.keys.(lockScoped); ok {
		f.locks = ls.lockTable()
	} else {
		f.locks = new(keylock.Table)
	}

	if f.directory == nil || f.cloud == nil {
		if strings.TrimSpace(cfg.baseURL) == "" {
			return nil, &ConfigurationError{
				Field:   "base URL",
				Message: "required unless both a directory and a cloud store are supplied",
			}
		}
		apiClient, err := buildAPIClient(cfg)
		if err != nil {
			return nil, &ConfigurationError{Field: "base URL", Message: err.Error()}
		}
		if f.directory == nil {
			f.directory = &remoteDirectory{api: apiClient}
		}
		if f.cloud == nil {
			f.cloud = &remoteCloud{api: apiClient}
		}
	}

	if cfg.logger != nil {
		f.log = slog.New(logging.Wrap(cfg.logger.Handler()))
	} else {
		f.log = logging.Discard()
	}

	return f, nil
}

// Initialize returns a manager bound to identity. The identity is trimmed
// and must not be empty; tokens must not be nil.
func (f *Factory) Initialize(identity string, tokens TokenSource) (*EThree, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, &ConfigurationError{Field: "identity", Message: "must not be empty"}
	}
	if tokens == nil {
		return nil, &ConfigurationError{Field: "token source", Message: "must not be nil"}
	}
	if fn, ok := tokens.(TokenSourceFunc); ok && fn == nil {
		return nil, &ConfigurationError{Field: "token source", Message: "must not be nil"}
	}

	return &EThree{
		identity:  identity,
		tokens:    tokens,
		keys:      f.keys,
		directory: f.directory,
		cloud:     f.cloud,
		crypto:    f.crypto,
		locks:     f.locks,
		log:       f.log.With("identity", identity),
	}, nil
}

// Initialize is NewFactory followed by Factory.Initialize. Managers created
// by separate calls are serialized only when they share a LocalKeyStorage;
// with a custom KeyStorage use one Factory for all managers of an identity.
func Initialize(identity string, tokens TokenSource, opts ...Option) (*EThree, error) {
	f, err := NewFactory(opts...)
	if err != nil {
		return nil, err
	}
	return f.Initialize(identity, tokens)
}

// lockIdentity serializes mutating operations on one identity.
func (e *EThree) lockIdentity(ctx context.Context) (func(), error) {
	return e.locks.Lock(ctx, e.identity)
}
