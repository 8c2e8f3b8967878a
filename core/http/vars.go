package http

import "github.com/searchktools/tmplserve/core/arena"

// Variable is one request-scoped key/value pair.
type Variable struct {
	Key   string
	Value string
}

// Vars is the request-scoped variable store. Keys are unique: setting an
// existing key replaces its value. The store is tied to one arena
// generation; once the arena is reset it reports nothing until rebound.
type Vars struct {
	a       *arena.Arena
	gen     uint64
	entries []Variable
}

func (v *Vars) bind(a *arena.Arena) {
	v.a = a
	v.gen = a.Generation()
	v.entries = v.entries[:0]
}

func (v *Vars) stale() bool {
	return v.a == nil || v.a.Generation() != v.gen
}

// Set copies key and value into the arena and stores them.
func (v *Vars) Set(key, value string) error {
	if v.a == nil {
		v.SetMoved(key, value)
		return nil
	}
	if v.stale() {
		v.bind(v.a)
	}

	k, err := v.a.String(key)
	if err != nil {
		return err
	}
	val, err := v.a.String(value)
	if err != nil {
		return err
	}
	v.put(k, val)
	return nil
}

// SetMoved stores key and value without copying; the caller hands over ownership.
func (v *Vars) SetMoved(key, value string) {
	if v.a != nil && v.stale() {
		v.bind(v.a)
	}
	v.put(key, value)
}

func (v *Vars) put(key, value string) {
	for i := range v.entries {
		if v.entries[i].Key == key {
			v.entries[i].Value = value
			return
		}
	}
	v.entries = append(v.entries, Variable{Key: key, Value: value})
}

// Get looks up key by exact match.
func (v *Vars) Get(key string) (string, bool) {
	if v.a != nil && v.stale() {
		return "", false
	}
	for i := range v.entries {
		if v.entries[i].Key == key {
			return v.entries[i].Value, true
		}
	}
	return "", false
}

// Len returns the number of live variables.
func (v *Vars) Len() int {
	if v.a != nil && v.stale() {
		return 0
	}
	return len(v.entries)
}
