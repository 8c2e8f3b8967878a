// Package fscache provides the filesystem used to serve mappings, with an
// optional LRU cache of file contents that is invalidated by filesystem
// notifications.
package fscache

import (
	"container/list"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// MaxFileSize is the largest file the cache will hold.
const MaxFileSize = 1 << 20

// FS is the filesystem view used by the mapping table and the template engine.
// Missing files surface as errors matching fs.ErrNotExist.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// OS reads straight from the operating system.
type OS struct{}

func (OS) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OS) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }
func (OS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

// Cache caches file contents using LRU. Entries are dropped when fsnotify
// reports a change to the file or its directory.
type Cache struct {
	OS

	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lruList  *list.List
	maxFiles int
	watched  map[string]bool
	// bumped by every Invalidate; a read that overlaps one is not cached
	invalidations uint64

	watcher *fsnotify.Watcher
	done    chan struct{}

	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheEntry struct {
	data    []byte
	element *list.Element
}

// New creates a cache holding up to maxFiles files.
func New(maxFiles int) (*Cache, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if maxFiles <= 0 {
		maxFiles = 1
	}

	c := &Cache{
		cache:    make(map[string]*cacheEntry),
		lruList:  list.New(),
		maxFiles: maxFiles,
		watched:  make(map[string]bool),
		watcher:  w,
		done:     make(chan struct{}),
	}
	go c.watch()
	return c, nil
}

func (c *Cache) watch() {
	defer close(c.done)
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				c.Invalidate(ev.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[fscache] warning: watcher: %v", err)
		}
	}
}

// ReadFile returns the contents of name, from the cache when possible.
func (c *Cache) ReadFile(name string) ([]byte, error) {
	name = filepath.Clean(name)

	c.mu.Lock()
	if entry, ok := c.cache[name]; ok {
		c.lruList.MoveToFront(entry.element)
		c.mu.Unlock()
		c.hits.Add(1)
		return entry.data, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	// The directory is watched before the read, so any later write
	// reaches Invalidate.
	gen, cacheable := c.watchDir(filepath.Dir(name))

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if !cacheable || len(data) > MaxFileSize {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache[name]; ok || c.invalidations != gen {
		return data, nil
	}

	element := c.lruList.PushFront(name)
	c.cache[name] = &cacheEntry{data: data, element: element}

	// Evict oldest if over limit
	if c.lruList.Len() > c.maxFiles {
		oldest := c.lruList.Back()
		if oldest != nil {
			delete(c.cache, oldest.Value.(string))
			c.lruList.Remove(oldest)
		}
	}

	return data, nil
}

// watchDir adds dir to the watcher once and reports whether files in it
// may be cached, along with the current invalidation count.
func (c *Cache) watchDir(dir string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watched[dir] {
		return c.invalidations, true
	}
	if err := c.watcher.Add(dir); err != nil {
		log.Printf("[fscache] warning: cannot watch %s, not caching: %v", dir, err)
		return c.invalidations, false
	}
	c.watched[dir] = true
	return c.invalidations, true
}

// Watching reports whether dir is registered with the watcher.
func (c *Cache) Watching(dir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watched[filepath.Clean(dir)]
}

// Invalidate drops name and everything below it.
func (c *Cache) Invalidate(name string) {
	name = filepath.Clean(name)
	prefix := name + string(filepath.Separator)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidations++
	for path, entry := range c.cache {
		if path == name || strings.HasPrefix(path, prefix) {
			c.lruList.Remove(entry.element)
			delete(c.cache, path)
		}
	}
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Hits returns the number of reads served from the cache.
func (c *Cache) Hits() uint64 { return c.hits.Load() }

// Misses returns the number of reads that went to disk.
func (c *Cache) Misses() uint64 { return c.misses.Load() }

// Close stops watching and drops all entries.
func (c *Cache) Close() error {
	err := c.watcher.Close()
	<-c.done

	c.mu.Lock()
	c.cache = make(map[string]*cacheEntry)
	c.lruList.Init()
	c.mu.Unlock()
	return err
}
