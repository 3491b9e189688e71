package httpproto

import (
	"path/filepath"
	"strings"
)

// MIMEType maps a file extension to its Content-Type, per the baseline
// table; anything unrecognized falls back to application/octet-stream.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".ico":
		return "image/x-icon"
	case ".txt":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// CacheControl picks a Cache-Control value by file extension, giving
// long-lived immutable assets a longer max-age than everything else.
func CacheControl(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "":
		return "no-cache, no-store, must-revalidate"
	case ".css", ".js":
		return "public, max-age=86400, must-revalidate"
	case ".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg":
		return "public, max-age=604800, immutable"
	case ".html", ".htm":
		return "public, max-age=300, must-revalidate"
	case ".pdf", ".doc", ".docx":
		return "public, max-age=86400"
	default:
		return "public, max-age=3600"
	}
}
