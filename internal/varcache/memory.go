package varcache

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

type memoryEntry struct {
	value     *permissions.CalculatedPermissions
	expiresAt time.Time // zero means no expiry
}

// Memory is the process-local transient cache tier.
type Memory struct {
	resolver Resolver

	mu      sync.RWMutex
	entries map[string]memoryEntry
	tagged  map[string]map[string]struct{}

	now func() time.Time
}

// NewMemory constructs an empty transient cache.
func NewMemory(resolver Resolver) *Memory {
	return &Memory{
		resolver: resolver,
		entries:  make(map[string]memoryEntry),
		tagged:   make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// Get returns the stored value for the varied key, expiring lazily.
func (m *Memory) Get(ctx context.Context, baseKey string, contexts []string) (*permissions.CalculatedPermissions, bool, error) {
	key, err := buildKey(ctx, m.resolver, baseKey, contexts)
	if err != nil {
		return nil, false, err
	}

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Only drop the entry we observed; a Set racing between the two
		// locks may already have stored a fresh value under this key.
		if current, stillThere := m.entries[key]; stillThere && current.value == entry.value && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores the value under the varied key, deriving expiry from the
// value's max-age and indexing it by its cache tags.
func (m *Memory) Set(ctx context.Context, baseKey string, value *permissions.CalculatedPermissions, contexts []string) error {
	key, err := buildKey(ctx, m.resolver, baseKey, contexts)
	if err != nil {
		return err
	}

	entry := memoryEntry{value: value}
	if maxAge := value.MaxAge(); maxAge != permissions.MaxAgePermanent {
		entry.expiresAt = m.now().Add(time.Duration(maxAge) * time.Second)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	for _, tag := range value.CacheTags() {
		keys, ok := m.tagged[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tagged[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// InvalidateTags drops every entry written with any of the given tags.
func (m *Memory) InvalidateTags(ctx context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		for key := range m.tagged[tag] {
			delete(m.entries, key)
		}
		delete(m.tagged, tag)
	}
	return nil
}

// Flush drops all entries.
func (m *Memory) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	m.tagged = make(map[string]map[string]struct{})
}

// Len reports the number of live entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
