package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cognivue/cognivue-backend/internal/platform/gcp"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

func TestClassifyStorageProviderBootstrapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want StorageProviderBootstrapErrorCode
	}{
		{"invalid mode", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidMode}, StorageProviderBootstrapErrorInvalidMode},
		{"missing bucket", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingBucket}, StorageProviderBootstrapErrorMissingBucket},
		{"missing emulator host", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingEmulatorHost}, StorageProviderBootstrapErrorMissingEmulatorHost},
		{"invalid emulator host", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorInvalidEmulatorHost}, StorageProviderBootstrapErrorInvalidEmulatorHost},
		{"missing local dir", &gcp.ObjectStorageConfigError{Code: gcp.ObjectStorageConfigErrorMissingLocalDir}, StorageProviderBootstrapErrorMissingLocalDir},
		{"connect failed", errors.New("dial tcp: connection refused"), StorageProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStorageProviderBootstrapError(gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, tc.err)
			var got *StorageProviderBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("cause not preserved: %v", err)
			}
		})
	}
}

func TestResolveObjectStoreInvalidMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.Mode = "invalid"

	_, err := resolveObjectStore(context.Background(), logger.Nop(), cfg)
	if err == nil {
		t.Fatalf("resolveObjectStore: expected error, got nil")
	}
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidMode, code)
	}
}

func TestResolveObjectStoreEmulatorValidation(t *testing.T) {
	cases := []struct {
		name string
		host string
		want StorageProviderBootstrapErrorCode
	}{
		{"missing host", "", StorageProviderBootstrapErrorMissingEmulatorHost},
		{"bad host", "not-a-url", StorageProviderBootstrapErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Storage.Mode = gcp.ObjectStorageModeGCSEmulator
			cfg.Storage.Bucket = "resumes"
			cfg.Storage.EmulatorHost = tc.host

			_, err := resolveObjectStore(context.Background(), logger.Nop(), cfg)
			if code := storageProviderBootstrapErrorCode(err); err == nil || code != tc.want {
				t.Fatalf("want code %q, got err=%v", tc.want, err)
			}
		})
	}
}

func TestResolveObjectStoreUsesResolvedMode(t *testing.T) {
	orig := newObjectStore
	t.Cleanup(func() { newObjectStore = orig })

	var captured gcp.ObjectStorageConfig
	expected := &stubObjectStore{}
	newObjectStore = func(_ context.Context, cfg gcp.ObjectStorageConfig, _ *logger.Logger) (gcp.ObjectStore, error) {
		captured = cfg
		return expected, nil
	}

	cfg := defaultConfig()
	cfg.Storage.Bucket = "cognivue-resumes"
	got, err := resolveObjectStore(context.Background(), logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("resolveObjectStore: %v", err)
	}
	if got != expected {
		t.Fatalf("store: expected stub instance")
	}
	if captured.Mode != gcp.ObjectStorageModeGCS {
		t.Fatalf("mode: want=%q got=%q", gcp.ObjectStorageModeGCS, captured.Mode)
	}
}

func TestResolveObjectStoreLocal(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.LocalDir = t.TempDir()

	store, err := resolveObjectStore(context.Background(), logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("resolveObjectStore: %v", err)
	}
	defer store.Close()
	if _, err := store.Put(context.Background(), "a.pdf", strings.NewReader("%PDF")); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

type stubObjectStore struct{}

func (s *stubObjectStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	return "stub://" + key, nil
}

func (s *stubObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (s *stubObjectStore) Delete(ctx context.Context, key string) error { return nil }

func (s *stubObjectStore) Close() error { return nil }
