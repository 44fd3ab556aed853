// Package constants provides shared constants used across the codebase.
package constants

// Handler limits
const (
	// MaxUploadSize is the maximum size of a multipart photo upload request (64 MiB)
	MaxUploadSize = 64 << 20

	// MaxPhotosPerEnrollment caps the number of photos accepted in one enrollment call
	MaxPhotosPerEnrollment = 32

	// MaxNameQueryLength is the maximum length of the employee name filter
	MaxNameQueryLength = 200
)
