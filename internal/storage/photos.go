package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrDisabled     = errors.New("object storage not configured")
	ErrNotAnImage   = errors.New("unsupported image type")
	ErrImageTooBig  = errors.New("image too large")
	MaxPhotoSize    = int64(5 << 20)
	allowedPhotoExt = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	}
)

// ObjectStore is the blob storage used for profile photos.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// PhotoKey returns a fresh object key for a profile photo of uid.
func PhotoKey(uid, contentType string, now time.Time) (string, error) {
	ext, ok := allowedPhotoExt[strings.ToLower(contentType)]
	if !ok {
		return "", ErrNotAnImage
	}
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	return "profiles/" + uid + "/photo-" + strings.ToLower(id.String()) + ext, nil
}

// OwnsKey reports whether key lives under uid's photo prefix.
func OwnsKey(uid, key string) bool {
	return uid != "" && strings.HasPrefix(key, "profiles/"+uid+"/")
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process memory. Used in development and tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject), baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *MemoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoSize+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > MaxPhotoSize {
		return ErrImageTooBig
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	q := url.Values{"expires": {time.Now().Add(expires).UTC().Format(time.RFC3339)}}
	return m.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}
