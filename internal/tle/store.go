package tle

import (
	"sync/atomic"
	"time"
)

// Store holds the catalog currently in service. Readers never block and
// always see a complete catalog; loading a new one swaps the pointer.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore returns an empty Store.
func NewStore() *Store { return &Store{} }

// Get returns the catalog in service, or nil before the first load.
func (s *Store) Get() *Catalog { return s.current.Load() }

// Set puts c in service.
func (s *Store) Set(c *Catalog) { s.current.Store(c) }

// Swap puts c in service and returns the catalog it replaced, if any.
func (s *Store) Swap(c *Catalog) *Catalog { return s.current.Swap(c) }

// AgeSeconds is the time since the catalog in service was loaded, or -1
// when there is none.
func (s *Store) AgeSeconds() float64 {
	c := s.current.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.LoadedAt).Seconds()
}
