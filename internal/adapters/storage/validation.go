package storage

import (
	"fmt"
	"strings"
)

// MaxFileSize caps a single stored object.
const MaxFileSize int64 = 5 << 20

// AllowedContentTypes defines the MIME types that may be stored.
var AllowedContentTypes = map[string]bool{
	"application/json": true,
	"text/plain":       true,
	"text/csv":         true,
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	// Normalize content type (remove parameters like charset)
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedContentTypes[ct] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file is empty")
	}
	if sizeBytes > MaxFileSize {
		return fmt.Errorf("file size %d exceeds maximum of %d bytes", sizeBytes, MaxFileSize)
	}
	return nil
}

// ValidateFileKey rejects keys that could escape their folder.
func ValidateFileKey(fileKey string) error {
	if fileKey == "" || strings.HasPrefix(fileKey, "/") {
		return fmt.Errorf("invalid file key %q", fileKey)
	}
	for _, part := range strings.Split(fileKey, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid file key %q", fileKey)
		}
	}
	return nil
}
