package source

import (
	"path/filepath"
	"strings"
)

var audioExtensions = map[string]struct{}{
	".wav": {}, ".aiff": {}, ".aif": {}, ".flac": {}, ".mp3": {}, ".ogg": {}, ".opus": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".webm": {}, ".mts": {}, ".m4v": {}, ".mxf": {},
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func IsAudioFile(path string) bool {
	_, ok := audioExtensions[ext(path)]
	return ok
}

func IsVideoFile(path string) bool {
	_, ok := videoExtensions[ext(path)]
	return ok
}

// IsSupported returns true for the media files worth importing.
func IsSupported(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

// HasExtension is a helper for Decoder.Supports implementations.
func HasExtension(path string, extensions ...string) bool {
	e := ext(path)
	for _, candidate := range extensions {
		if e == candidate {
			return true
		}
	}
	return false
}
