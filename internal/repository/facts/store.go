// Package facts persists remembered fact lists keyed by conversation fingerprint.
//
// Each list lives in one canonical record. Other fingerprints of the same
// conversation point at it through alias keys, so an update made through any
// of them is visible through all of them. The record also lists its aliases,
// which lets an update that joins two conversations move every alias of the
// absorbed record onto the surviving one.
package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/fact"
	"github.com/kailas-cloud/ragpack/internal/domain/fingerprint"
)

var (
	recordPrefix = domain.KeyPrefix + "facts:"
	aliasPrefix  = domain.KeyPrefix + "facts:alias:"
)

// store is the consumer interface for fact persistence (ISP).
type store interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	SetMulti(ctx context.Context, items []db.KVItem) error
}

// record is the stored JSON value of a canonical key.
type record struct {
	Facts   []string `json:"facts"`
	Aliases []string `json:"aliases,omitempty"`
}

// Store implements the fact store on top of the KV layer.
type Store struct {
	store store
	ttl   time.Duration
}

// New creates a fact store. A zero ttl keeps facts forever.
func New(s store, ttl time.Duration) *Store {
	return &Store{store: s, ttl: ttl}
}

// Get returns the fact list for each fingerprint, aligned with fps.
// Fingerprints without facts get an empty list.
func (s *Store) Get(ctx context.Context, fps []fingerprint.Fingerprint) ([][]fact.Fact, error) {
	if len(fps) == 0 {
		return nil, nil
	}

	canonical, err := s.resolve(ctx, fps)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, canonical)
	if err != nil {
		return nil, err
	}

	out := make([][]fact.Fact, len(fps))
	for i, rec := range records {
		out[i] = fact.FromStrings(rec.Facts)
	}
	return out, nil
}

// Update replaces the fact list of a conversation.
// The record is written under the canonical key of the first fingerprint and
// every other fingerprint is aliased to it. When another fingerprint already
// belongs to a different record, that record is absorbed: it and all of its
// aliases are re-pointed at the surviving record.
func (s *Store) Update(ctx context.Context, facts []fact.Fact, fps []fingerprint.Fingerprint) error {
	if len(fps) == 0 {
		return fmt.Errorf("%w: at least one fingerprint is required", domain.ErrInvalidRequest)
	}

	resolved, err := s.resolve(ctx, fps)
	if err != nil {
		return err
	}
	target := resolved[0]

	canonicals := []fingerprint.Fingerprint{target}
	seen := map[fingerprint.Fingerprint]bool{target: true}
	for _, c := range resolved[1:] {
		if !seen[c] {
			seen[c] = true
			canonicals = append(canonicals, c)
		}
	}
	existing, err := s.records(ctx, canonicals)
	if err != nil {
		return err
	}

	members := newMemberSet(target)
	for i, rec := range existing {
		if i > 0 {
			members.add(canonicals[i])
		}
		for _, a := range rec.Aliases {
			fp, err := parseFingerprint(a)
			if err != nil {
				return fmt.Errorf("%w: record %s: %w", domain.ErrFactStoreUnavailable, recordKey(canonicals[i]), err)
			}
			members.add(fp)
		}
	}
	for _, fp := range fps {
		members.add(fp)
	}

	rec := record{Facts: fact.Strings(facts)}
	for _, fp := range members.list {
		rec.Aliases = append(rec.Aliases, fp.String())
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode facts: %w", err)
	}

	items := make([]db.KVItem, 0, len(members.list)+1)
	items = append(items, db.KVItem{Key: recordKey(target), Value: data, TTL: s.ttl})
	for _, fp := range members.list {
		items = append(items, db.KVItem{Key: aliasKey(fp), Value: []byte(target.String()), TTL: s.ttl})
	}

	if err := s.store.SetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: write: %w", domain.ErrFactStoreUnavailable, err)
	}
	return nil
}

// resolve follows one alias hop per fingerprint; unaliased fingerprints are their own canonical.
func (s *Store) resolve(ctx context.Context, fps []fingerprint.Fingerprint) ([]fingerprint.Fingerprint, error) {
	keys := make([]string, len(fps))
	for i, fp := range fps {
		keys[i] = aliasKey(fp)
	}
	raw, err := s.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: read aliases: %w", domain.ErrFactStoreUnavailable, err)
	}

	out := make([]fingerprint.Fingerprint, len(fps))
	copy(out, fps)
	for i := range fps {
		if i >= len(raw) || len(raw[i]) == 0 {
			continue
		}
		target, err := parseFingerprint(string(raw[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: alias %s: %w", domain.ErrFactStoreUnavailable, keys[i], err)
		}
		out[i] = target
	}
	return out, nil
}

// records reads the canonical records, aligned with canonical. Missing ones are empty.
func (s *Store) records(ctx context.Context, canonical []fingerprint.Fingerprint) ([]record, error) {
	keys := make([]string, len(canonical))
	for i, fp := range canonical {
		keys[i] = recordKey(fp)
	}
	raw, err := s.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: read records: %w", domain.ErrFactStoreUnavailable, err)
	}

	out := make([]record, len(canonical))
	for i := range canonical {
		if i >= len(raw) || len(raw[i]) == 0 {
			continue
		}
		if err := json.Unmarshal(raw[i], &out[i]); err != nil {
			return nil, fmt.Errorf("%w: decode record %s: %w", domain.ErrFactStoreUnavailable, keys[i], err)
		}
	}
	return out, nil
}

// memberSet collects alias fingerprints in first-added order, excluding the canonical.
type memberSet struct {
	canonical fingerprint.Fingerprint
	seen      map[fingerprint.Fingerprint]bool
	list      []fingerprint.Fingerprint
}

func newMemberSet(canonical fingerprint.Fingerprint) *memberSet {
	return &memberSet{canonical: canonical, seen: make(map[fingerprint.Fingerprint]bool)}
}

func (m *memberSet) add(fp fingerprint.Fingerprint) {
	if fp == m.canonical || m.seen[fp] {
		return
	}
	m.seen[fp] = true
	m.list = append(m.list, fp)
}

func recordKey(fp fingerprint.Fingerprint) string { return recordPrefix + fp.String() }
func aliasKey(fp fingerprint.Fingerprint) string  { return aliasPrefix + fp.String() }

func parseFingerprint(s string) (fingerprint.Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, errors.New("malformed fingerprint " + s)
	}
	return fingerprint.Fingerprint(v), nil
}
