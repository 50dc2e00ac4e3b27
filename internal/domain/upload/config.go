package upload

import (
	"fmt"
	"time"
)

const (
	// DefaultSizeThreshold is the size at which chunked transfer takes over.
	DefaultSizeThreshold int64 = 50 << 20

	// DefaultChunkSize is the size of every part except possibly the last.
	DefaultChunkSize int64 = 8 << 20

	// DefaultRetireDelay is how long a succeeded upload stays in the registry.
	DefaultRetireDelay = 1500 * time.Millisecond
)

// Config holds upload orchestrator configuration.
type Config struct {
	// SizeThreshold selects chunked transfer for files of at least this size.
	SizeThreshold int64

	// ChunkSize is the part size for chunked transfers.
	ChunkSize int64

	// PartConcurrency is the number of parts uploaded at once within a
	// session. 1 keeps parts strictly sequential.
	PartConcurrency int

	// MaxConcurrentUploads caps simultaneously running uploads. 0 means no cap.
	MaxConcurrentUploads int

	// AbortOnFailure aborts the multipart session when a chunked transfer fails.
	AbortOnFailure bool

	// RetireDelay is the delay before a succeeded upload leaves the registry.
	RetireDelay time.Duration
}

// DefaultConfig returns default upload configuration.
func DefaultConfig() *Config {
	return &Config{
		SizeThreshold:        DefaultSizeThreshold,
		ChunkSize:            DefaultChunkSize,
		PartConcurrency:      1,
		MaxConcurrentUploads: 0,
		AbortOnFailure:       false,
		RetireDelay:          DefaultRetireDelay,
	}
}

// Validate checks the configuration for values the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.SizeThreshold <= 0 {
		return fmt.Errorf("%w: size threshold must be positive", ErrInvalidConfig)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.PartConcurrency < 1 {
		return fmt.Errorf("%w: part concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.MaxConcurrentUploads < 0 {
		return fmt.Errorf("%w: max concurrent uploads must not be negative", ErrInvalidConfig)
	}
	return nil
}
