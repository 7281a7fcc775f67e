package network

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/esperoj/esperoj/util/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	logging "github.com/op/go-logging"
)

// ObjectStore defines the object-level storage operations the archiver
// and fixity checker need. We define object-level methods only: workers
// put, get, stat, list, and delete objects. They do not create buckets
// or modify bucket policies, and we don't want them to even be able to
// perform those operations. The interface exists so tests can swap in
// an in-memory store.
type ObjectStore interface {
	Provider() string
	Bucket() string
	Upload(ctx context.Context, key, localPath, contentType string) (int64, error)
	Download(ctx context.Context, key, localPath string) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (minio.ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expires time.Duration) (*url.URL, error)
}

// S3ObjectStore is the Minio-backed ObjectStore. One store is bound to
// one provider and one bucket; the Context keeps a map of them.
type S3ObjectStore struct {
	provider string
	bucket   string
	client   *minio.Client
	logger   *logging.Logger
}

func NewS3ObjectStore(provider, bucket, host, keyID, secretKey string, useSSL bool, logger *logging.Logger) (*S3ObjectStore, error) {
	client, err := minio.New(
		host,
		&minio.Options{
			Creds:  credentials.NewStaticV4(keyID, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, err
	}
	return &S3ObjectStore{
		provider: provider,
		bucket:   bucket,
		client:   client,
		logger:   logger,
	}, nil
}

// TraceOn turns on Minio's HTTP trace output, writing it to w.
// The Context enables this when the log level is DEBUG.
func (store *S3ObjectStore) TraceOn(w io.Writer) {
	store.client.TraceOn(w)
}

func (store *S3ObjectStore) Provider() string {
	return store.provider
}

func (store *S3ObjectStore) Bucket() string {
	return store.bucket
}

// Upload streams the file at localPath into the bucket under key.
// Large uploads log progress so operators can see that a 200GB upload
// is moving.
func (store *S3ObjectStore) Upload(ctx context.Context, key, localPath, contentType string) (int64, error) {
	stat, err := os.Stat(localPath)
	if err != nil {
		return 0, err
	}
	reader, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	opts := minio.PutObjectOptions{
		ContentType: contentType,
		Progress:    logger.NewUploadProgressLogger(store.logger, key, stat.Size()),
	}
	info, err := store.client.PutObject(ctx, store.bucket, key, reader, stat.Size(), opts)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (store *S3ObjectStore) Download(ctx context.Context, key, localPath string) error {
	return store.client.FGetObject(ctx, store.bucket, key, localPath, minio.GetObjectOptions{})
}

// GetObject returns a stream of the object's bytes. The caller must
// close it, or we wind up with too many open connections.
func (store *S3ObjectStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	return store.client.GetObject(ctx, store.bucket, key, minio.GetObjectOptions{})
}

func (store *S3ObjectStore) StatObject(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return store.client.StatObject(ctx, store.bucket, key, minio.StatObjectOptions{})
}

// Exists returns true if the object is present in the bucket.
// A missing key is not an error here; any other S3 error is.
func (store *S3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := store.client.StatObject(ctx, store.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResponse := minio.ToErrorResponse(err)
		if errResponse.Code == "NoSuchKey" || errResponse.StatusCode == 404 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (store *S3ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	opts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}
	for objInfo := range store.client.ListObjects(ctx, store.bucket, opts) {
		if objInfo.Err != nil {
			return nil, objInfo.Err
		}
		keys = append(keys, objInfo.Key)
	}
	return keys, nil
}

func (store *S3ObjectStore) Delete(ctx context.Context, key string) error {
	return store.client.RemoveObject(ctx, store.bucket, key, minio.RemoveObjectOptions{})
}

// PresignedGetURL returns a time-limited URL for the object, which we
// hand to external collaborators that can't hold our credentials.
func (store *S3ObjectStore) PresignedGetURL(ctx context.Context, key string, expires time.Duration) (*url.URL, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("no such object: %s/%s", store.bucket, key)
	}
	return store.client.PresignedGetObject(ctx, store.bucket, key, expires, url.Values{})
}

// IsNoSuchKey returns true if err is the S3 error for a missing object.
// The fixity checker treats this as a `missing` file rather than a
// transient network failure.
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	errResponse := minio.ToErrorResponse(err)
	return errResponse.Code == "NoSuchKey" || errResponse.StatusCode == 404
}
