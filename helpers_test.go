package e3kit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vaultsandbox/e3kit-go/internal/crypto"
)

func fastBrainKey() BrainKeyParams {
	p := crypto.FastBrainKeyParams()
	return BrainKeyParams{Time: p.Time, Memory: p.Memory, Threads: p.Threads}
}

// testEnv is an in-process deployment: one backend, one key storage and a
// factory over both.
type testEnv struct {
	backend *LocalBackend
	keys    *LocalKeyStorage
	factory *Factory
}

func newTestEnv(t testing.TB, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		backend: NewLocalBackend(),
		keys:    NewMemoryKeyStorage(),
	}
	base := []Option{
		WithDirectory(env.backend),
		WithCloudStore(env.backend),
		WithKeyStorage(env.keys),
		WithBrainKeyParams(fastBrainKey()),
	}
	f, err := NewFactory(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	env.factory = f
	return env
}

func (env *testEnv) manager(t testing.TB, identity string) *EThree {
	t.Helper()
	e, err := env.factory.Initialize(identity, StaticToken("token-"+identity))
	if err != nil {
		t.Fatalf("Initialize(%q) error = %v", identity, err)
	}
	return e
}

func (env *testEnv) bootstrapped(t testing.TB, identity string) *EThree {
	t.Helper()
	e := env.manager(t, identity)
	if _, err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap(%q) error = %v", identity, err)
	}
	return e
}

// card returns the newest card of identity straight from the backend.
func (env *testEnv) card(t testing.TB, identity string) *Card {
	t.Helper()
	cards, err := env.backend.Lookup(ContextWithToken(context.Background(), "test"), []string{identity})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	return cards[identity]
}

func (env *testEnv) backupEntry(t testing.TB, identity string) *CloudEntry {
	t.Helper()
	e, err := env.backend.Get(ContextWithToken(context.Background(), "test"), identity, backupName(identity))
	if errors.Is(err, ErrCloudEntryNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return e
}

func mustLoadKey(t testing.TB, s KeyStorage, identity string) []byte {
	t.Helper()
	key, err := s.Load(identity)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", identity, err)
	}
	return key
}

// countingDirectory counts Publish calls and can be made to fail.
type countingDirectory struct {
	Directory
	publishes  atomic.Int32
	publishErr error
}

func (d *countingDirectory) Publish(ctx context.Context, identity string, publicKey []byte, previousCardID string) (*Card, error) {
	d.publishes.Add(1)
	if d.publishErr != nil {
		return nil, d.publishErr
	}
	return d.Directory.Publish(ctx, identity, publicKey, previousCardID)
}

// failingKeyStorage fails every Store.
type failingKeyStorage struct {
	KeyStorage
	err error
}

func (s *failingKeyStorage) Store(string, []byte) error { return s.err }

// racingCloud bumps an entry's version right before a versioned write, as
// another device would.
type racingCloud struct {
	CloudStore
	once sync.Once
}

func (c *racingCloud) Put(ctx context.Context, identity, name string, data []byte, expectedVersion string) (*CloudEntry, error) {
	if expectedVersion != "" {
		c.once.Do(func() {
			_, _ = c.CloudStore.Put(ctx, identity, name, data, expectedVersion)
		})
	}
	return c.CloudStore.Put(ctx, identity, name, data, expectedVersion)
}
