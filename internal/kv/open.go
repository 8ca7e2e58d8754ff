// internal/kv/open.go

package kv

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Options carries what every backend might need. Only the fields relevant
// to Backend are read.
type Options struct {
	Backend  string
	DataDir  string
	Redis    *redis.Client
	RedisOpt []RedisOption
	S3       S3ClientInterface
	Bucket   string
}

// Open returns the store for namespace on the configured backend.
func Open(opts Options, namespace string) (Store, error) {
	if err := ValidateKey(namespace); err != nil {
		return nil, fmt.Errorf("namespace: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case "", BackendFile:
		dir := opts.DataDir
		if dir == "" {
			dir = "data"
		}
		return NewFileStore(filepath.Join(dir, namespace)), nil
	case BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis backend requires a client")
		}
		return NewRedisStore(opts.Redis, namespace, opts.RedisOpt...), nil
	case BackendS3:
		if opts.S3 == nil || opts.Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires a client and a bucket")
		}
		return NewS3Store(opts.S3, opts.Bucket, namespace), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
