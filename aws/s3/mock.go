package s3

import (
	"sort"
	"strings"
	"sync"
)

// MockClient is an in-memory BasicClient for tests.
type MockClient struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Puts    []string // keys in the order they were written, including overwrites.
}

func NewMockClient() *MockClient {
	return &MockClient{Objects: make(map[string][]byte)}
}

func (m *MockClient) List(key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Objects))
	for k := range m.Objects {
		if strings.HasPrefix(k, key) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MockClient) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return data, nil
}

func (m *MockClient) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	m.Puts = append(m.Puts, key)
	return nil
}
