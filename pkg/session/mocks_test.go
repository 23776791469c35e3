package session

import (
	"errors"
	"sync"
)

// --- Mocks ---

// mockKV はメモリ上の KV なのだ。putErr を設定すると書き込みが失敗するのだ。
type mockKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   []string
	putErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}}
}

func (m *mockKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts = append(m.puts, key)
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *mockKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockKV) putCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range m.puts {
		if k == key {
			n++
		}
	}
	return n
}

var errDiskFull = errors.New("disk full")
