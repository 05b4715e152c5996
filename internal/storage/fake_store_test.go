package storage

import (
	"context"
	"errors"
	"io"
	"sync"
)

type memoryBlob struct {
	data         []byte
	contentType  string
	cacheControl string
	metadata     map[string]string
}

// memoryStore is an in-memory BlobStore. failOn makes the named operation
// return errStoreDown.
type memoryStore struct {
	mu        sync.Mutex
	blobs     map[string]*memoryBlob
	ensured   int
	deleted   []string
	failOn    string
	container string
}

var errStoreDown = errors.New("storage unavailable")

func newMemoryStore() *memoryStore {
	return &memoryStore{blobs: make(map[string]*memoryBlob), container: "temp"}
}

func (m *memoryStore) EnsureContainer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "ensure" {
		return errStoreDown
	}
	m.ensured++
	return nil
}

func (m *memoryStore) Put(ctx context.Context, name string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "put" {
		return errStoreDown
	}
	if _, exists := m.blobs[name]; exists {
		return errors.New("blob already exists: " + name)
	}
	m.blobs[name] = &memoryBlob{data: data, contentType: contentType, metadata: map[string]string{}}
	return nil
}

func (m *memoryStore) Properties(ctx context.Context, name string) (*BlobProperties, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, errors.New("blob not found: " + name)
	}
	md := make(map[string]string, len(b.metadata))
	for k, v := range b.metadata {
		md[k] = v
	}
	return &BlobProperties{ContentType: b.contentType, CacheControl: b.cacheControl, Metadata: md}, nil
}

func (m *memoryStore) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "metadata" {
		return errStoreDown
	}
	b, ok := m.blobs[name]
	if !ok {
		return errors.New("blob not found: " + name)
	}
	b.metadata = metadata
	return nil
}

func (m *memoryStore) SetHTTPHeaders(ctx context.Context, name string, headers BlobHTTPHeaders) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return errors.New("blob not found: " + name)
	}
	b.contentType = headers.ContentType
	b.cacheControl = headers.CacheControl
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *memoryStore) URL(name string) string {
	return "https://account.blob.core.windows.net/" + m.container + "/" + name
}

func (m *memoryStore) blob(name string) *memoryBlob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[name]
}

func (m *memoryStore) deletedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
