package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	putErr      error
	putKey      string
	putSize     int64
	putType     string
	removeErr   error
	removedKeys []string
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, name string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = name
	return f.makeBucketErr
}

func (f *fakeMinio) PutObject(_ context.Context, _, key string, _ io.Reader, size int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	f.putKey, f.putSize, f.putType = key, size, opts.ContentType
	return minioLib.UploadInfo{Key: key, Size: size}, f.putErr
}

func (f *fakeMinio) RemoveObject(_ context.Context, _, key string, _ minioLib.RemoveObjectOptions) error {
	f.removedKeys = append(f.removedKeys, key)
	return f.removeErr
}

func TestNewStore_CreatesMissingBucket(t *testing.T) {
	api := &fakeMinio{}
	_, err := newStore(context.Background(), api, "files", "", "http://minio:9000/files")
	require.NoError(t, err)
	assert.Equal(t, "files", api.madeBucket)
}

func TestNewStore_ExistingBucket(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	_, err := newStore(context.Background(), api, "files", "", "http://minio:9000/files")
	require.NoError(t, err)
	assert.Empty(t, api.madeBucket)
}

func TestNewStore_BucketErrors(t *testing.T) {
	_, err := newStore(context.Background(), &fakeMinio{bucketExistsErr: errors.New("boom")}, "files", "", "")
	assert.ErrorContains(t, err, "ensure bucket files")

	_, err = newStore(context.Background(), &fakeMinio{makeBucketErr: errors.New("denied")}, "files", "", "")
	assert.ErrorContains(t, err, "denied")
}

func TestStore_PutDelete(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	store, err := newStore(context.Background(), api, "files", "", "http://minio:9000/files")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "files/u1/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/files/files/u1/a.png", url)
	assert.Equal(t, int64(3), api.putSize)
	assert.Equal(t, "image/png", api.putType)

	require.NoError(t, store.Delete(context.Background(), "files/u1/a.png"))
	assert.Equal(t, []string{"files/u1/a.png"}, api.removedKeys)

	api.putErr = errors.New("full")
	_, err = store.Put(context.Background(), "k", strings.NewReader(""), 0, "text/plain")
	assert.ErrorContains(t, err, "put object k")
}
