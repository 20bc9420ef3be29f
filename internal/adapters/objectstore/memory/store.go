package memory

import (
	"context"
	"strings"
	"sync"
)

// Object is one stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is an in-memory domain.ObjectStore for local mode and tests. URLs are
// baseURL + "/" + key.
type Store struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object

	// Err, when set, fails every upload.
	Err error
}

func NewStore(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

func (s *Store) UploadObject(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = Object{Data: cp, ContentType: contentType}

	if s.baseURL == "" {
		return "", nil
	}
	return s.baseURL + "/" + key, nil
}

// Get returns a stored object.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}

// Len is the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Keys lists the stored keys in no particular order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}
