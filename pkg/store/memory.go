package store

import (
	"context"
	"sync"
)

// Memory is an in-process record store. Records live as long as the value.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Lookup returns a copy of the record for baseURL or ErrNotFound.
func (m *Memory) Lookup(ctx context.Context, baseURL string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[baseURL]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Upsert overwrites etag and page number, keeping UsedCount.
func (m *Memory) Upsert(ctx context.Context, baseURL string, pageNumber int, etag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[baseURL]
	rec.BaseURL = baseURL
	rec.ETag = etag
	rec.PageNumber = pageNumber
	m.records[baseURL] = rec
	return nil
}

// RecordHit increments UsedCount. Missing records are left alone.
func (m *Memory) RecordHit(ctx context.Context, baseURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[baseURL]
	if !ok {
		return nil
	}
	rec.UsedCount++
	m.records[baseURL] = rec
	return nil
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
