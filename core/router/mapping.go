package router

import (
	"log"
	"strings"
	"sync"

	"github.com/searchktools/tmplserve/core/fscache"
	"github.com/searchktools/tmplserve/core/mime"
)

// Kind selects how a mapping serves its target.
type Kind uint8

const (
	Auto      Kind = iota // resolved at registration
	Directory             // route prefix, file below target
	File                  // exact route, target contents
	Template              // exact route, rendered target
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Directory:
		return "directory"
	case File:
		return "file"
	case Template:
		return "template"
	}
	return "unknown"
}

// TemplateExt marks files that Auto resolves to Template.
const TemplateExt = ".tmpl"

// Mapping routes requests to a filesystem target.
type Mapping struct {
	Kind     Kind
	Route    string
	Target   string
	MimeType string
}

// Match reports whether page is served by m.
func (m *Mapping) Match(page string) bool {
	if m.Kind == Directory {
		return strings.HasPrefix(page, m.Route)
	}
	return page == m.Route
}

// Table is the ordered mapping table. Entries are appended before the
// server starts and only read afterwards.
type Table struct {
	mu       sync.Mutex
	fs       fscache.FS
	mappings []Mapping
	frozen   bool
}

// NewTable creates a table that stats Auto targets through fsys.
func NewTable(fsys fscache.FS) *Table {
	if fsys == nil {
		fsys = fscache.OS{}
	}
	return &Table{fs: fsys}
}

func trimSlash(s string) string {
	for len(s) > 1 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Register appends m. Auto is resolved by statting the target; a target
// that cannot be resolved drops the mapping with a warning. Registration
// after Freeze is rejected.
func (t *Table) Register(m Mapping) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		log.Printf("[mapping] warning: table is frozen, mapping '%s' ignored", m.Route)
		return false
	}

	m.Route = trimSlash(m.Route)
	m.Target = trimSlash(m.Target)

	log.Printf("[mapping] mapping '%s' to '%s'...", m.Route, m.Target)

	if m.Kind == Auto {
		info, err := t.fs.Stat(m.Target)
		if err != nil {
			log.Printf("[mapping] warning: stat failed for '%s', mapping ignored: %v", m.Target, err)
			return false
		}

		switch {
		case info.IsDir():
			m.Kind = Directory
		case info.Mode().IsRegular():
			if strings.HasSuffix(m.Target, TemplateExt) {
				m.Kind = Template
			} else {
				m.Kind = File
			}
		default:
			log.Printf("[mapping] warning: invalid file type for '%s', mapping ignored", m.Target)
			return false
		}
		log.Printf("[mapping] selected mapping type %s", m.Kind)
	}

	if m.MimeType == "" {
		switch m.Kind {
		case Template:
			m.MimeType = mime.TypeOrDefault(m.Route, "text/html")
		case File:
			m.MimeType = mime.TypeByExtension(m.Target)
		}
	}

	t.mappings = append(t.mappings, m)
	return true
}

// Freeze rejects further registrations.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Mappings returns the registered mappings in order. The slice must not
// be modified.
func (t *Table) Mappings() []Mapping {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mappings
}

// Lookup returns the first mapping serving page.
func (t *Table) Lookup(page string) (*Mapping, bool) {
	ms := t.Mappings()
	for i := range ms {
		if ms[i].Match(page) {
			return &ms[i], true
		}
	}
	return nil, false
}
