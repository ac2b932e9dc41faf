package devserver

import (
	"maps"
	"sync"
)

// Document is the project document shared by the connected objects.
type Document struct {
	mu     sync.RWMutex
	fields map[string]any
}

func NewDocument() *Document {
	return &Document{fields: make(map[string]any)}
}

func (d *Document) Update(fields map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	maps.Copy(d.fields, fields)
}

func (d *Document) Get(field string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.fields[field]
	return v, ok
}

func (d *Document) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.fields)
}
