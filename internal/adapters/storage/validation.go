package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes lists what the agency stores: documents and call audio.
var AllowedContentTypes = map[string]bool{
	"application/pdf":  true,
	"application/json": true,
	"text/plain":       true,

	"audio/mpeg":  true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
	"audio/ogg":   true,

	"video/mp4":       true,
	"video/quicktime": true,
}

// audioExtensions are the recording formats accepted for transcription.
var audioExtensions = []string{".mp3", ".m4a", ".wav", ".mp4", ".mov", ".webm", ".ogg"}

// ValidateContentType checks the media type, ignoring parameters such as charset.
func ValidateContentType(contentType string) error {
	base := strings.TrimSpace(strings.ToLower(strings.SplitN(contentType, ";", 2)[0]))
	if !AllowedContentTypes[base] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateFileSize checks size against max. A non-positive max disables the check.
func ValidateFileSize(sizeBytes, max int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file is empty")
	}
	if max > 0 && sizeBytes > max {
		return fmt.Errorf("file size %d exceeds maximum of %d bytes", sizeBytes, max)
	}
	return nil
}

// IsAudioFile reports whether the key looks like a call recording.
func IsAudioFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
