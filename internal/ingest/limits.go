package ingest

import (
	"errors"
	"fmt"
)

// ErrFileTooLarge is returned when the uploaded CSV exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// multipartOverhead is allowed on top of the file for boundaries and the
// source field.
const multipartOverhead = 64 * 1024

// UploadLimits bounds a single CSV upload.
type UploadLimits struct {
	MaxFileBytes int64
}

// DefaultUploadLimits returns the default upload limits
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{MaxFileBytes: 5 * 1024 * 1024}
}

func NewUploadLimits(maxFileBytes int64) UploadLimits {
	if maxFileBytes <= 0 {
		return DefaultUploadLimits()
	}
	return UploadLimits{MaxFileBytes: maxFileBytes}
}

// MaxRequestBytes is the largest request body accepted for an upload.
func (l UploadLimits) MaxRequestBytes() int64 {
	return l.MaxFileBytes + multipartOverhead
}

// ValidateFileSize checks if a single file size is within limits
func (l UploadLimits) ValidateFileSize(size int64, filename string) error {
	if size > l.MaxFileBytes {
		return fmt.Errorf("%w: file %s is %d bytes, limit is %d bytes", ErrFileTooLarge, filename, size, l.MaxFileBytes)
	}
	return nil
}
