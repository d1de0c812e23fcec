package websession

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t testing.TB) *Codec {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	enc, err := NewAEADEncrypter(key)
	require.NoError(t, err)
	return NewCodec(enc)
}

func newTestToken(t testing.TB) string {
	t.Helper()
	token, err := generateToken()
	require.NoError(t, err)
	return token
}

func newMemFileStore(t testing.TB, codec *Codec) *FileStore {
	t.Helper()
	store, err := NewFileStoreWithConfig(FileConfig{
		Dir:   "/sessions",
		Fs:    afero.NewMemMapFs(),
		Codec: codec,
	})
	require.NoError(t, err)
	return store
}

// MockStore keeps sessions in memory and counts calls.
type MockStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	reads    int
	saves    int
	failSave bool
}

func newMockStore() *MockStore {
	return &MockStore{sessions: make(map[string]*Session)}
}

func (m *MockStore) Save(ctx context.Context, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSave {
		return false
	}
	m.sessions[s.ID()] = s
	return true
}

func (m *MockStore) Read(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.sessions[id]
}

func (m *MockStore) Remove(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *MockStore) Clear(ctx context.Context) bool { return true }
func (m *MockStore) Close() error                   { return nil }

func mockRegistry(store Store) *Registry {
	return NewRegistry().Register("file", func(ConfigReader) (Store, error) {
		return store, nil
	})
}
