package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error) {
	args := m.Called(ctx, key, reader, contentType, size)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStorage) GetURL(key string) string {
	return m.Called(key).String(0)
}

func (m *mockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type failingStorage struct{ err error }

func (f failingStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) (string, error) {
	// Consume the reader the way a failed network upload would.
	_, _ = io.Copy(io.Discard, reader)
	return "", f.err
}

func (f failingStorage) Delete(ctx context.Context, key string) error { return f.err }

func (f failingStorage) GetURL(key string) string { return "https://r2.example.com/" + key }

func (f failingStorage) Exists(ctx context.Context, key string) (bool, error) { return false, f.err }

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStorageService(dir, "http://localhost:8080/uploads/", nil)
	ctx := context.Background()

	url, err := store.Upload(ctx, "products/p1/a.jpg", strings.NewReader("hello"), "image/jpeg", 5)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/products/p1/a.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "products", "p1", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	exists, err := store.Exists(ctx, "products/p1/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "products/p1/a.jpg"))
	exists, err = store.Exists(ctx, "products/p1/a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = os.Stat(filepath.Join(dir, "products"))
	assert.True(t, os.IsNotExist(err), "empty directories are removed")

	require.NoError(t, store.Delete(ctx, "products/p1/missing.jpg"))
}

func TestLocalStorageKeys(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStorageService(dir, "/uploads", nil)
	ctx := context.Background()

	_, err := store.Upload(ctx, "../../escape.txt", strings.NewReader("x"), "text/plain", 1)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err, "parent references stay inside the base directory")

	_, err = store.Upload(ctx, "", strings.NewReader("x"), "text/plain", 1)
	assert.Error(t, err)

	_, err = store.Upload(ctx, "short.txt", strings.NewReader("abc"), "text/plain", 10)
	assert.Error(t, err)

	_, err = store.Upload(ctx, "unknown-size.txt", strings.NewReader("abc"), "text/plain", -1)
	assert.NoError(t, err)
}

func TestStorageWithFallback(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStorageService(t.TempDir(), "/uploads", nil)
	store := NewStorageWithFallback(failingStorage{err: errors.New("r2 down")}, local, nil)

	url, err := store.Upload(ctx, "products/p1/a.jpg", bytes.NewReader([]byte("hello")), "image/jpeg", 5)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/products/p1/a.jpg", url)

	exists, err := store.Exists(ctx, "products/p1/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.Upload(ctx, "products/p1/b.jpg", io.LimitReader(strings.NewReader("hello"), 5), "image/jpeg", 5)
	assert.Error(t, err, "a reader that cannot rewind is not retried")

	assert.NoError(t, store.Delete(ctx, "products/p1/a.jpg"))
	assert.Equal(t, "https://r2.example.com/k", store.GetURL("k"))
}

func TestStorageWithFallbackPrimaryHealthy(t *testing.T) {
	ctx := context.Background()
	primary := new(mockStorage)
	fallback := new(mockStorage)
	store := NewStorageWithFallback(primary, fallback, nil)

	body := bytes.NewReader([]byte("hello"))
	primary.On("Upload", ctx, "products/p1/a.jpg", body, "image/jpeg", int64(5)).
		Return("https://r2.example.com/products/p1/a.jpg", nil)
	primary.On("Exists", ctx, "products/p1/a.jpg").Return(true, nil)
	primary.On("Delete", ctx, "products/p1/a.jpg").Return(nil)
	fallback.On("Delete", ctx, "products/p1/a.jpg").Return(errors.New("not found"))

	url, err := store.Upload(ctx, "products/p1/a.jpg", body, "image/jpeg", 5)
	require.NoError(t, err)
	assert.Equal(t, "https://r2.example.com/products/p1/a.jpg", url)

	exists, err := store.Exists(ctx, "products/p1/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.NoError(t, store.Delete(ctx, "products/p1/a.jpg"), "one successful delete is enough")

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
	fallback.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	fallback.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestStorageWithFallbackBothDeletesFail(t *testing.T) {
	ctx := context.Background()
	primary := new(mockStorage)
	fallback := new(mockStorage)
	primary.On("Delete", ctx, "k").Return(errors.New("r2 down"))
	fallback.On("Delete", ctx, "k").Return(errors.New("disk full"))

	err := NewStorageWithFallback(primary, fallback, nil).Delete(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "r2 down")
	assert.Contains(t, err.Error(), "disk full")
}
