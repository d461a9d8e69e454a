package uploads

import (
	"context"
	"sync"
)

// MemoryStore keeps images for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[Key]Image
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[Key]Image)}
}

func (s *MemoryStore) Put(ctx context.Context, key Key, img Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := key.Path(); err != nil {
		return err
	}
	img = prepare(img)
	img.Data = append([]byte(nil), img.Data...)
	s.mu.Lock()
	s.images[key] = img
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	img, ok := s.images[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

// Len returns the number of stored images.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
