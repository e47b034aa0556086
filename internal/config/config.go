// Package config provides functionality for managing configuration options
// for the application using command-line flags and environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// MinSecretLen is the minimum length in bytes of the master encryption secret.
const MinSecretLen = 32

var (
	// ErrSecretMissing indicates that no master encryption secret was supplied.
	ErrSecretMissing = errors.New("config: ENCRYPTION_SECRET is required")
	// ErrSecretTooShort indicates that the supplied master secret is shorter
	// than MinSecretLen bytes.
	ErrSecretTooShort = fmt.Errorf("config: ENCRYPTION_SECRET must be at least %d bytes", MinSecretLen)
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string

	// DataDir is the directory holding the document store files.
	DataDir string

	// EncryptionSecret is the process-wide master secret used for per-user
	// key derivation. It must be at least MinSecretLen bytes.
	EncryptionSecret []byte

	// CacheTTL is how long a resolved protection level stays in the cache.
	CacheTTL time.Duration

	// MigrationBatchSize is the number of operations committed per batch
	// during a protection-level migration.
	MigrationBatchSize int
}

// options holds the current configuration values.
var options = &Options{}

var cacheTTLSeconds int

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Addr, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DataDir, "d", "data", "document store directory")
	flag.IntVar(&cacheTTLSeconds, "cache-ttl", 3600, "protection level cache TTL in seconds")
	flag.IntVar(&options.MigrationBatchSize, "batch-size", 100, "operations committed per migration batch")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct, or an
// error if the master secret is missing or too short. Callers must treat any
// error as fatal: the process refuses to start without a usable secret.
func Parse() (*Options, error) {
	flag.Parse()

	// Override flags with environment variables if set
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		options.Addr = addr
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		options.DataDir = dir
	}
	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		v, err := strconv.Atoi(ttl)
		if err != nil {
			return nil, fmt.Errorf("config: invalid CACHE_TTL %q: %w", ttl, err)
		}
		cacheTTLSeconds = v
	}
	if size := os.Getenv("MIGRATION_BATCH_SIZE"); size != "" {
		v, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("config: invalid MIGRATION_BATCH_SIZE %q: %w", size, err)
		}
		options.MigrationBatchSize = v
	}
	options.CacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	secret := os.Getenv("ENCRYPTION_SECRET")
	if secret == "" {
		return nil, ErrSecretMissing
	}
	if len(secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}
	options.EncryptionSecret = []byte(secret)

	return options, nil
}
