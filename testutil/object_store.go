package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

// FakeObjectStore is an in-memory network.ObjectStore for unit tests.
// It records every operation so tests can assert on call patterns, and
// it can be told to fail specific operations.
type FakeObjectStore struct {
	provider string
	bucket   string

	mutex   sync.Mutex
	objects map[string][]byte
	types   map[string]string

	// Calls counts operations by name: "Upload", "GetObject", etc.
	Calls map[string]int

	// FailOn maps an operation name to the error it should return.
	FailOn map[string]error
}

func NewFakeObjectStore(provider, bucket string) *FakeObjectStore {
	return &FakeObjectStore{
		provider: provider,
		bucket:   bucket,
		objects:  make(map[string][]byte),
		types:    make(map[string]string),
		Calls:    make(map[string]int),
		FailOn:   make(map[string]error),
	}
}

func (store *FakeObjectStore) record(op string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.Calls[op]++
	return store.FailOn[op]
}

// PutBytes seeds an object directly, bypassing call counting.
func (store *FakeObjectStore) PutBytes(key string, data []byte) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.objects[key] = data
}

// CorruptObject flips the stored bytes for key, so fixity checks fail.
func (store *FakeObjectStore) CorruptObject(key string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.objects[key] = append([]byte("corrupted:"), store.objects[key]...)
}

// RemoveBytes deletes an object directly, bypassing call counting.
func (store *FakeObjectStore) RemoveBytes(key string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	delete(store.objects, key)
}

func (store *FakeObjectStore) Provider() string {
	return store.provider
}

func (store *FakeObjectStore) Bucket() string {
	return store.bucket
}

func (store *FakeObjectStore) Upload(ctx context.Context, key, localPath, contentType string) (int64, error) {
	if err := store.record("Upload"); err != nil {
		return 0, err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	store.mutex.Lock()
	store.objects[key] = data
	store.types[key] = contentType
	store.mutex.Unlock()
	return int64(len(data)), nil
}

func (store *FakeObjectStore) Download(ctx context.Context, key, localPath string) error {
	if err := store.record("Download"); err != nil {
		return err
	}
	store.mutex.Lock()
	data, ok := store.objects[key]
	store.mutex.Unlock()
	if !ok {
		return noSuchKeyError(key)
	}
	return os.WriteFile(localPath, data, 0644)
}

func (store *FakeObjectStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := store.record("GetObject"); err != nil {
		return nil, err
	}
	store.mutex.Lock()
	data, ok := store.objects[key]
	store.mutex.Unlock()
	if !ok {
		return nil, noSuchKeyError(key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (store *FakeObjectStore) StatObject(ctx context.Context, key string) (minio.ObjectInfo, error) {
	if err := store.record("StatObject"); err != nil {
		return minio.ObjectInfo{}, err
	}
	store.mutex.Lock()
	data, ok := store.objects[key]
	contentType := store.types[key]
	store.mutex.Unlock()
	if !ok {
		return minio.ObjectInfo{}, noSuchKeyError(key)
	}
	return minio.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ETag:         fmt.Sprintf("%x", md5.Sum(data)),
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}, nil
}

func (store *FakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := store.record("Exists"); err != nil {
		return false, err
	}
	store.mutex.Lock()
	_, ok := store.objects[key]
	store.mutex.Unlock()
	return ok, nil
}

func (store *FakeObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := store.record("List"); err != nil {
		return nil, err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	keys := make([]string, 0)
	for key := range store.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (store *FakeObjectStore) Delete(ctx context.Context, key string) error {
	if err := store.record("Delete"); err != nil {
		return err
	}
	store.mutex.Lock()
	delete(store.objects, key)
	store.mutex.Unlock()
	return nil
}

func (store *FakeObjectStore) PresignedGetURL(ctx context.Context, key string, expires time.Duration) (*url.URL, error) {
	if err := store.record("PresignedGetURL"); err != nil {
		return nil, err
	}
	store.mutex.Lock()
	_, ok := store.objects[key]
	store.mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such object: %s/%s", store.bucket, key)
	}
	return url.Parse(fmt.Sprintf("https://%s.example.org/%s/%s?signed=true", store.provider, store.bucket, key))
}

func noSuchKeyError(key string) error {
	return minio.ErrorResponse{
		Code:       "NoSuchKey",
		Message:    "The specified key does not exist.",
		Key:        key,
		StatusCode: 404,
	}
}
