package dispatch

import (
	"path/filepath"
	"strings"
)

// extensionMimeTypes is a small built-in extension→MIME table used when
// storage doesn't already carry a mimeType for an object, supplementing the
// spec with the lookup Gerbera's util/mime.cc performs before falling back
// to magic-byte sniffing.
var extensionMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".wav":  "audio/x-wav",
	".m4a":  "audio/mp4",
	".wma":  "audio/x-ms-wma",
	".aac":  "audio/aac",
	".wv":   "audio/x-wavpack",

	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".ts":   "video/mp2t",
	".webm": "video/webm",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",

	".srt": "text/srt",
	".vtt": "text/vtt",
	".sub": "text/plain",
	".ass": "text/x-ssa",

	".m3u":  "audio/x-mpegurl",
	".pls":  "audio/x-scpls",
}

// KnownMimeTypes returns the distinct MIME types this server's extension
// table can recognize, for ConnectionManager GetProtocolInfo to advertise
// as Source protocol info instead of a hardcoded catalog.
func KnownMimeTypes() []string {
	seen := make(map[string]bool, len(extensionMimeTypes))
	var out []string
	for _, mime := range extensionMimeTypes {
		if !seen[mime] {
			seen[mime] = true
			out = append(out, mime)
		}
	}
	return out
}

// DetectMime returns the MIME type for path by extension, falling back to a
// generic octet-stream when the extension isn't recognized. The file's
// content is never sniffed.
func DetectMime(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := extensionMimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
