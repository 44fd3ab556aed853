// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultMatchCutoff is the default maximum euclidean distance for two
	// embeddings to be considered the same face.
	// Lower values = stricter matching
	DefaultMatchCutoff = 0.6

	// DefaultProbThreshold is the default fraction of a person's stored
	// embeddings that must match before the person is recognised.
	DefaultProbThreshold = 0.5
)

// Processing constants
const (
	// WorkerPoolSize is the number of photos extracted in parallel during enrollment
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) for image processing
	MaxImageSize = 1920

	// MaxImagePixels is the largest declared width*height accepted for decoding
	MaxImagePixels = 40_000_000

	// JPEGQuality is used when re-encoding downscaled photos for the embedding server
	JPEGQuality = 85
)

// Token type discriminators stored in the JWT "sub" claim.
const (
	AccessTokenType  = "access_token"
	RefreshTokenType = "refresh_token"

	// TokenTypeBearer is returned to clients in the token_type field
	TokenTypeBearer = "bearer"
)
