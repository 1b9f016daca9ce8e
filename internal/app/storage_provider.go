package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognivue/cognivue-backend/internal/platform/gcp"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

var newObjectStore = gcp.NewObjectStore

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidMode         StorageProviderBootstrapErrorCode = "invalid_mode"
	StorageProviderBootstrapErrorMissingBucket       StorageProviderBootstrapErrorCode = "missing_bucket"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorMissingLocalDir     StorageProviderBootstrapErrorCode = "missing_local_dir"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "resume storage bootstrap failed"
	}
	return fmt.Sprintf(
		"resume storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectStore opens the resume store selected by cfg.Storage and
// classifies bootstrap failures so operators get a stable error code.
func resolveObjectStore(ctx context.Context, log *logger.Logger, cfg Config) (gcp.ObjectStore, error) {
	storageCfg := cfg.Storage.ResolveMode()
	log.Info(
		"Selecting resume storage provider",
		"mode", storageCfg.Mode,
		"bucket", storageCfg.Bucket,
		"emulator_host", storageCfg.EmulatorHost,
	)

	store, err := newObjectStore(ctx, storageCfg, log)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(storageCfg, err)
		log.Error(
			"Resume storage bootstrap failed",
			"mode", storageCfg.Mode,
			"emulator_host", storageCfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

var configErrorCodes = map[gcp.ObjectStorageConfigErrorCode]StorageProviderBootstrapErrorCode{
	gcp.ObjectStorageConfigErrorInvalidMode:         StorageProviderBootstrapErrorInvalidMode,
	gcp.ObjectStorageConfigErrorMissingBucket:       StorageProviderBootstrapErrorMissingBucket,
	gcp.ObjectStorageConfigErrorMissingEmulatorHost: StorageProviderBootstrapErrorMissingEmulatorHost,
	gcp.ObjectStorageConfigErrorInvalidEmulatorHost: StorageProviderBootstrapErrorInvalidEmulatorHost,
	gcp.ObjectStorageConfigErrorMissingLocalDir:     StorageProviderBootstrapErrorMissingLocalDir,
}

func classifyStorageProviderBootstrapError(storageCfg gcp.ObjectStorageConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		if mapped, ok := configErrorCodes[cfgErr.Code]; ok {
			code = mapped
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
