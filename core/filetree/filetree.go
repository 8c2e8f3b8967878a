// Package filetree provides the file_tree template stream, which renders a
// mapped directory as nested <details> elements.
package filetree

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path"
	"path/filepath"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/searchktools/tmplserve/core/fscache"
	"github.com/searchktools/tmplserve/core/http"
	"github.com/searchktools/tmplserve/core/template"
)

// StreamName is the name templates use: `call file_tree;`.
const StreamName = "file_tree"

// MaxDepth bounds how many directory levels are listed.
const MaxDepth = 16

// Variables read from the request context.
const (
	VarRoute  = "map_route"
	VarTarget = "map_target"
)

// ErrNoTarget is returned when the map_target variable is not set.
var ErrNoTarget = errors.New("filetree: map_target not set")

var printer = message.NewPrinter(language.English)

// Stream returns the file_tree stream reading directories from fsys.
// A nil fsys reads the OS directly.
func Stream(fsys fscache.FS) template.StreamFunc {
	if fsys == nil {
		fsys = fscache.OS{}
	}
	return func(w io.Writer, ctx *http.Context) error {
		target, ok := ctx.Var(VarTarget)
		if !ok {
			return ErrNoTarget
		}
		route, _ := ctx.Var(VarRoute)

		t := tree{fs: fsys, w: w, route: route}
		entries, err := fsys.ReadDir(target)
		if err != nil {
			log.Printf("[filetree] warning: failed to open directory '%s': %v", target, err)
			return nil
		}
		if err := t.list(target, "", entries, 0); err != nil {
			return err
		}
		if !t.seen {
			_, err = io.WriteString(w, "<p class='bg-normal text-center'>No files available</p>")
		}
		return err
	}
}

type tree struct {
	fs    fscache.FS
	w     io.Writer
	route string
	seen  bool
}

// list writes the entries of dir, whose path relative to the target is rel.
func (t *tree) list(dir, rel string, entries []fs.DirEntry, depth int) error {
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		link := path.Join(rel, e.Name())
		pad := 16*depth + 2

		switch {
		case e.IsDir():
			if depth+1 == MaxDepth {
				log.Printf("[filetree] warning: max depth reached, ignoring directory '%s'", full)
				continue
			}
			sub, err := t.fs.ReadDir(full)
			if err != nil {
				log.Printf("[filetree] warning: failed to open directory '%s': %v", full, err)
				continue
			}
			t.seen = true
			if _, err := fmt.Fprintf(t.w, "<details><summary class=\"dir text-cyan\" style=\"padding-left: %dpx\">%s</summary>\n",
				pad, template.EscapeString(e.Name())); err != nil {
				return err
			}
			if err := t.list(full, link, sub, depth+1); err != nil {
				return err
			}
			if _, err := io.WriteString(t.w, "</details>"); err != nil {
				return err
			}

		case e.Type().IsRegular():
			info, err := e.Info()
			if err != nil {
				log.Printf("[filetree] warning: failed to stat '%s': %v", full, err)
				continue
			}
			t.seen = true
			if _, err := fmt.Fprintf(t.w, "<p class='file' style='padding-left: %dpx'><a href='%s/%s'>%s</a><span>%s</span><p>\n",
				pad, template.EscapeString(t.route), template.EscapeString(link),
				template.EscapeString(e.Name()), FormatSize(info.Size())); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatSize renders a byte count with a binary unit, e.g. "1.5 KiB".
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return printer.Sprintf("%d B", n)
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	v := float64(n) / unit
	i := 0
	for v >= unit && i < len(units)-1 {
		v /= unit
		i++
	}
	return printer.Sprintf("%.1f %s", v, units[i])
}
