// Package memory provides an in-process URL store. It keeps records only for
// the lifetime of the process and is meant for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vadimbarashkov/shorturl/internal/entity"
)

// URLRepository stores URL records in insertion order. Each call is atomic on its
// own; sequences of calls are not, matching a document store that serializes
// single operations only.
type URLRepository struct {
	mu   sync.RWMutex
	urls []entity.URL
	seq  int64
	now  func() time.Time
}

func NewURLRepository() *URLRepository {
	return &URLRepository{now: time.Now}
}

func (r *URLRepository) FindByURL(_ context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.FindByURL"

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.urls {
		if r.urls[i].OriginalURL == originalURL {
			url := r.urls[i]
			return &url, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
}

// FindByShortCode returns the first record stored under shortCode.
func (r *URLRepository) FindByShortCode(_ context.Context, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.FindByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.urls {
		if r.urls[i].ShortCode == shortCode {
			url := r.urls[i]
			return &url, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
}

func (r *URLRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.urls)), nil
}

// NextShortCode returns the next value of a counter that never repeats and
// always exceeds every stored short code.
func (r *URLRepository) NextShortCode(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++

	return r.seq, nil
}

func (r *URLRepository) Save(_ context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	url := entity.URL{
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		CreatedAt:   r.now().UTC(),
	}
	r.urls = append(r.urls, url)

	if shortCode > r.seq {
		r.seq = shortCode
	}

	return &url, nil
}
