package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// entry is one stored value with its expiry deadline.
type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. Values are stored as marshaled JSON so the
// round-trip behaves identically to the Redis implementation. A janitor
// goroutine sweeps expired entries; reads also check expiry so a stopped
// janitor never serves stale data.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry

	done chan struct{}
	once sync.Once
}

// NewMemory creates an in-memory cache and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		data: make(map[string]entry),
		done: make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Compile-time interface check.
var _ Cache = (*Memory)(nil)

// Get unmarshals the stored JSON into dest and reports presence.
func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, err
	}
	if mp, ok := dest.(*map[string]any); ok && mp != nil {
		RehydrateDates(*mp)
	}
	return true, nil
}

// Set marshals the value to JSON and stores it with the given TTL.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Delete removes keys unconditionally.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.data, key)
	}
	m.mu.Unlock()
	return nil
}

// DeleteByPrefix removes every key with the given prefix.
func (m *Memory) DeleteByPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	m.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.done) })
}

// janitor sweeps expired entries every second.
func (m *Memory) janitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for key, e := range m.data {
				if now.After(e.expiresAt) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
