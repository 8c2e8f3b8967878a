// Package mime maps file names to MIME types.
package mime

import (
	stdmime "mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Default is used for content that is neither known by extension nor sniffable.
const Default = "application/octet-stream"

// TypeByExtension returns the MIME type for path's extension, or "" when
// the extension is unknown.
func TypeByExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "":
		return ""
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".tmpl":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js", ".mjs":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".xml":
		return "application/xml; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	case ".webp":
		return "image/webp"
	case ".woff2":
		return "font/woff2"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return stdmime.TypeByExtension(ext)
}

// TypeOrDefault returns the MIME type for path, or def when unknown.
func TypeOrDefault(path, def string) string {
	if t := TypeByExtension(path); t != "" {
		return t
	}
	return def
}

// Sniff detects the MIME type from content.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// Detect uses path's extension and falls back to sniffing data.
func Detect(path string, data []byte) string {
	if t := TypeByExtension(path); t != "" {
		return t
	}
	if len(data) == 0 {
		return Default
	}
	return Sniff(data)
}
