// Package document provides per-guild JSON document storage.
//
// A document is an opaque JSON blob addressed by (guild, name). Stores offer
// no transactions; callers perform read-modify-write and use a Locker to
// serialize writers inside one process.
package document

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// Well-known document names.
const (
	NameUserLog = "userlog"
	NameConfig  = "config"
)

// ErrInvalidName is returned when a document name is empty.
var ErrInvalidName = errors.New("document name is empty")

// Store reads and writes guild documents.
type Store interface {
	// Get returns the raw document, or nil when the document does not exist.
	Get(ctx context.Context, guildID snowflake.ID, name string) ([]byte, error)
	// Set replaces the document wholesale.
	Set(ctx context.Context, guildID snowflake.ID, name string, data []byte) error
}

// Lister enumerates the guilds that hold a document.
type Lister interface {
	// Guilds returns guild ids in ascending order.
	Guilds(ctx context.Context, name string) ([]snowflake.ID, error)
}

// ListingStore is a Store that can also enumerate its guilds.
type ListingStore interface {
	Store
	Lister
}

type memoryKey struct {
	guildID snowflake.ID
	name    string
}

// Memory is an in-process Store used for development and tests.
type Memory struct {
	docs map[memoryKey][]byte
	mu   sync.RWMutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[memoryKey][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, guildID snowflake.ID, name string) ([]byte, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[memoryKey{guildID, name}]
	if !ok {
		return nil, nil
	}

	return append([]byte(nil), data...), nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, guildID snowflake.ID, name string, data []byte) error {
	if name == "" {
		return ErrInvalidName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[memoryKey{guildID, name}] = append([]byte(nil), data...)

	return nil
}

// Guilds implements Lister.
func (m *Memory) Guilds(_ context.Context, name string) ([]snowflake.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	guilds := make([]snowflake.ID, 0, len(m.docs))
	for key := range m.docs {
		if key.name == name {
			guilds = append(guilds, key.guildID)
		}
	}
	slices.Sort(guilds)

	return guilds, nil
}
