package posts

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/eringen/blogadmin/objectstore"
)

// memStore is an in-memory objectstore.Client with failure injection.
type memStore struct {
	mu      sync.Mutex
	objects map[string]objectstore.Object
	rev     int
	puts    []string
	gets    int
	// failPut returns an error for the given key instead of storing it.
	failPut map[string]error
	failGet error
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string]objectstore.Object),
		failPut: make(map[string]error),
	}
}

func (m *memStore) Get(_ context.Context, key string) (*objectstore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failGet != nil {
		return nil, m.failGet
	}
	obj, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	body := append([]byte(nil), obj.Body...)
	return &objectstore.Object{Body: body, ContentType: obj.ContentType, ETag: obj.ETag}, nil
}

func (m *memStore) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, key)
	if err := m.failPut[key]; err != nil {
		return "", err
	}
	m.rev++
	etag := strconv.Itoa(m.rev)
	m.objects[key] = objectstore.Object{
		Body:        append([]byte(nil), body...),
		ContentType: contentType,
		ETag:        etag,
	}
	return etag, nil
}

func (m *memStore) Stat(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return "", objectstore.ErrNotFound
	}
	return obj.ETag, nil
}

func (m *memStore) URL(key string) string {
	return "https://bucket.example.com/" + key
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts)
}

var errBoom = errors.New("connection reset by peer")
