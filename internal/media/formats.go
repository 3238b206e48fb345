package media

import (
	"path/filepath"
	"strings"
)

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".m4a": {}, ".flac": {}, ".ogg": {}, ".wma": {}, ".aac": {}, ".opus": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mkv": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {}, ".m4v": {}, ".3gp": {},
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func IsAudio(path string) bool {
	_, ok := audioExtensions[ext(path)]
	return ok
}

func IsVideo(path string) bool {
	_, ok := videoExtensions[ext(path)]
	return ok
}

// IsSupported reports whether path has an extension the converter accepts.
func IsSupported(path string) bool {
	return IsAudio(path) || IsVideo(path)
}

// BaseName strips the directory and extension from path. Artifact names are
// derived from it.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
