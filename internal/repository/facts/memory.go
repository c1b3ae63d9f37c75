package facts

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/fact"
	"github.com/kailas-cloud/ragpack/internal/domain/fingerprint"
)

// MemoryStore is an in-process fact store with the same aliasing rules as Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[fingerprint.Fingerprint][]fact.Fact
	aliases map[fingerprint.Fingerprint]fingerprint.Fingerprint
	members map[fingerprint.Fingerprint][]fingerprint.Fingerprint
}

// NewMemory creates an empty in-process fact store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(map[fingerprint.Fingerprint][]fact.Fact),
		aliases: make(map[fingerprint.Fingerprint]fingerprint.Fingerprint),
		members: make(map[fingerprint.Fingerprint][]fingerprint.Fingerprint),
	}
}

// Get returns the fact list for each fingerprint, aligned with fps.
func (m *MemoryStore) Get(_ context.Context, fps []fingerprint.Fingerprint) ([][]fact.Fact, error) {
	if len(fps) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]fact.Fact, len(fps))
	for i, fp := range fps {
		out[i] = slices.Clone(m.records[m.canonical(fp)])
	}
	return out, nil
}

// Update replaces the fact list under the first fingerprint's canonical record,
// aliases the rest and absorbs any other record one of them belonged to.
func (m *MemoryStore) Update(_ context.Context, facts []fact.Fact, fps []fingerprint.Fingerprint) error {
	if len(fps) == 0 {
		return fmt.Errorf("%w: at least one fingerprint is required", domain.ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.canonical(fps[0])
	for _, fp := range fps[1:] {
		if c := m.canonical(fp); c != target {
			m.absorb(c, target)
		}
		m.alias(fp, target)
	}
	m.records[target] = slices.Clone(facts)
	return nil
}

// absorb moves record c and all of its aliases onto target.
func (m *MemoryStore) absorb(c, target fingerprint.Fingerprint) {
	for _, a := range m.members[c] {
		m.alias(a, target)
	}
	m.alias(c, target)
	delete(m.members, c)
	delete(m.records, c)
}

func (m *MemoryStore) alias(fp, target fingerprint.Fingerprint) {
	if fp == target {
		return
	}
	m.aliases[fp] = target
	if !slices.Contains(m.members[target], fp) {
		m.members[target] = append(m.members[target], fp)
	}
}

func (m *MemoryStore) canonical(fp fingerprint.Fingerprint) fingerprint.Fingerprint {
	if target, ok := m.aliases[fp]; ok {
		return target
	}
	return fp
}
