package router

import (
	"os"
	"path/filepath"
	"testing"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegisterAuto(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "pages", "index.tmpl"), "p[hi]")
	mkfile(t, filepath.Join(dir, "public", "favicon.png"), "png")

	table := NewTable(nil)

	tests := []struct {
		route  string
		target string
		kind   Kind
		mime   string
	}{
		{"/", filepath.Join(dir, "pages", "index.tmpl"), Template, "text/html"},
		{"/feed.xml", filepath.Join(dir, "pages", "index.tmpl"), Template, "application/xml; charset=utf-8"},
		{"/favicon.ico", filepath.Join(dir, "public", "favicon.png"), File, "image/png"},
		{"/static", filepath.Join(dir, "public"), Directory, ""},
	}

	for _, tt := range tests {
		if !table.Register(Mapping{Route: tt.route, Target: tt.target}) {
			t.Fatalf("Register(%s) failed", tt.route)
		}
	}

	ms := table.Mappings()
	if len(ms) != len(tests) {
		t.Fatalf("got %d mappings, want %d", len(ms), len(tests))
	}
	for i, tt := range tests {
		if ms[i].Kind != tt.kind {
			t.Errorf("%s: Kind = %s, want %s", tt.route, ms[i].Kind, tt.kind)
		}
		if ms[i].MimeType != tt.mime {
			t.Errorf("%s: MimeType = %q, want %q", tt.route, ms[i].MimeType, tt.mime)
		}
	}
}

func TestRegisterUnresolvable(t *testing.T) {
	table := NewTable(nil)

	if table.Register(Mapping{Route: "/x", Target: filepath.Join(t.TempDir(), "missing")}) {
		t.Error("Register with missing target should fail")
	}
	if len(table.Mappings()) != 0 {
		t.Error("unresolvable mapping was stored")
	}
}

func TestRegisterExplicitKindSkipsStat(t *testing.T) {
	table := NewTable(nil)

	ok := table.Register(Mapping{Kind: File, Route: "/robots.txt", Target: "/does/not/exist.txt"})
	if !ok {
		t.Fatal("explicit mapping should not be statted")
	}
	if m := table.Mappings()[0]; m.MimeType != "text/plain; charset=utf-8" {
		t.Errorf("MimeType = %q", m.MimeType)
	}
}

func TestRegisterTrimsSlashes(t *testing.T) {
	dir := t.TempDir()
	table := NewTable(nil)

	table.Register(Mapping{Route: "/docs/", Target: dir + "/"})
	table.Register(Mapping{Route: "/", Target: dir})

	ms := table.Mappings()
	if ms[0].Route != "/docs" || ms[0].Target != dir {
		t.Errorf("got route %q target %q", ms[0].Route, ms[0].Target)
	}
	if ms[1].Route != "/" {
		t.Errorf("root route trimmed to %q", ms[1].Route)
	}
}

func TestRegisterOverrideMime(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "data.bin"), "x")

	table := NewTable(nil)
	table.Register(Mapping{Route: "/data", Target: filepath.Join(dir, "data.bin"), MimeType: "text/csv"})

	if m := table.Mappings()[0]; m.MimeType != "text/csv" {
		t.Errorf("MimeType = %q, want text/csv", m.MimeType)
	}
}

func TestFreeze(t *testing.T) {
	dir := t.TempDir()
	table := NewTable(nil)
	table.Freeze()

	if table.Register(Mapping{Route: "/", Target: dir}) {
		t.Error("Register after Freeze should be rejected")
	}
}

func TestLookupOrder(t *testing.T) {
	table := NewTable(nil)
	table.Register(Mapping{Kind: File, Route: "/a", Target: "/srv/a"})
	table.Register(Mapping{Kind: Directory, Route: "/", Target: "/srv"})

	tests := []struct {
		page string
		kind Kind
	}{
		{"/a", File},
		{"/a/b", Directory},
		{"/b", Directory},
	}
	for _, tt := range tests {
		m, ok := table.Lookup(tt.page)
		if !ok || m.Kind != tt.kind {
			t.Errorf("Lookup(%s) = %v, %v; want %s", tt.page, m, ok, tt.kind)
		}
	}

	empty := NewTable(nil)
	if _, ok := empty.Lookup("/"); ok {
		t.Error("empty table should match nothing")
	}
}
