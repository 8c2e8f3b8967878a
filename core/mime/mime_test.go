package mime

import (
	"strings"
	"testing"
)

func TestTypeByExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/index.html", "text/html; charset=utf-8"},
		{"/STYLE.CSS", "text/css; charset=utf-8"},
		{"/favicon.ico", "image/x-icon"},
		{"/a/b/photo.jpeg", "image/jpeg"},
		{"/README", ""},
		{"/dir.d/noext", ""},
	}

	for _, tt := range tests {
		if got := TypeByExtension(tt.path); got != tt.want {
			t.Errorf("TypeByExtension(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestTypeOrDefault(t *testing.T) {
	if got := TypeOrDefault("/", "text/html"); got != "text/html" {
		t.Errorf("TypeOrDefault(/) = %q, want text/html", got)
	}
	if got := TypeOrDefault("/feed.xml", "text/html"); got != "application/xml; charset=utf-8" {
		t.Errorf("TypeOrDefault(/feed.xml) = %q", got)
	}
}

func TestDetect(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if got := Detect("/image", png); got != "image/png" {
		t.Errorf("Detect(png) = %q, want image/png", got)
	}

	if got := Detect("/notes", []byte("just some words")); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("Detect(text) = %q, want text/plain", got)
	}

	if got := Detect("/empty", nil); got != Default {
		t.Errorf("Detect(empty) = %q, want %q", got, Default)
	}

	if got := Detect("/page.html", png); got != "text/html; charset=utf-8" {
		t.Errorf("extension should win over content, got %q", got)
	}
}
