package broker

import "time"

// Config holds broker configuration.
type Config struct {
	// PresignExpiry is the lifetime of every issued URL.
	PresignExpiry time.Duration

	// PublicBaseURL prefixes object keys in listings.
	PublicBaseURL string

	// KeyRandomSuffix appends a random hex suffix to generated keys.
	KeyRandomSuffix bool

	// AllowedContentTypes restricts accepted file types. Empty allows all.
	AllowedContentTypes []string

	// ListPrefix limits listings to keys under this prefix.
	ListPrefix string

	// ListMaxKeys caps the number of listed objects.
	ListMaxKeys int32
}

// DefaultConfig returns default broker configuration.
func DefaultConfig() *Config {
	return &Config{
		PresignExpiry:   5 * time.Minute,
		KeyRandomSuffix: true,
		ListMaxKeys:     1000,
	}
}
