package facts

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/ragpack/internal/db"
	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/fact"
	"github.com/kailas-cloud/ragpack/internal/domain/fingerprint"
)

// mapKV implements the consumer interface over a plain map.
type mapKV struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMapKV() *mapKV {
	return &mapKV{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *mapKV) MGet(_ context.Context, keys []string) ([][]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.data[k]
	}
	return out, nil
}

func (m *mapKV) SetMulti(_ context.Context, items []db.KVItem) error {
	if m.setErr != nil {
		return m.setErr
	}
	for _, it := range items {
		m.data[it.Key] = it.Value
		m.ttls[it.Key] = it.TTL
	}
	return nil
}

type factStore interface {
	Get(ctx context.Context, fps []fingerprint.Fingerprint) ([][]fact.Fact, error)
	Update(ctx context.Context, facts []fact.Fact, fps []fingerprint.Fingerprint) error
}

func implementations() map[string]func() factStore {
	return map[string]func() factStore{
		"redis":  func() factStore { return New(newMapKV(), 0) },
		"memory": func() factStore { return NewMemory() },
	}
}

func contents(facts []fact.Fact) []string { return fact.Strings(facts) }

func TestFactStore_UpdateThenGet(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			s := mk()
			ctx := context.Background()
			fps := []fingerprint.Fingerprint{1, 2, 3}

			if err := s.Update(ctx, fact.FromStrings([]string{"likes tea", "lives in Oslo"}), fps); err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, err := s.Get(ctx, fps)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("len = %d, want 3", len(got))
			}
			for i := range got {
				if !slices.Equal(contents(got[i]), []string{"likes tea", "lives in Oslo"}) {
					t.Errorf("fp %d facts = %v", fps[i], contents(got[i]))
				}
			}
		})
	}
}

func TestFactStore_UpdateThroughAliasIsVisibleEverywhere(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			s := mk()
			ctx := context.Background()

			if err := s.Update(ctx, fact.FromStrings([]string{"v1"}), []fingerprint.Fingerprint{10, 20}); err != nil {
				t.Fatalf("Update: %v", err)
			}
			// Conversation moved on: 20 is now the first fingerprint and is an alias of 10.
			if err := s.Update(ctx, fact.FromStrings([]string{"v2"}), []fingerprint.Fingerprint{20, 30}); err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, err := s.Get(ctx, []fingerprint.Fingerprint{10, 20, 30})
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			for i, fp := range []fingerprint.Fingerprint{10, 20, 30} {
				if !slices.Equal(contents(got[i]), []string{"v2"}) {
					t.Errorf("fp %d facts = %v, want [v2]", fp, contents(got[i]))
				}
			}
		})
	}
}

func TestFactStore_UpdateAbsorbsRecordOfLaterFingerprint(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			s := mk()
			ctx := context.Background()

			// 1 is canonical for 2.
			if err := s.Update(ctx, fact.FromStrings([]string{"old"}), []fingerprint.Fingerprint{1, 2}); err != nil {
				t.Fatalf("Update: %v", err)
			}
			// 1 now joins the conversation of 3; 2 shared 1's list and must follow it.
			if err := s.Update(ctx, fact.FromStrings([]string{"new"}), []fingerprint.Fingerprint{3, 1}); err != nil {
				t.Fatalf("Update: %v", err)
			}

			fps := []fingerprint.Fingerprint{1, 2, 3}
			got, err := s.Get(ctx, fps)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			for i, fp := range fps {
				if !slices.Equal(contents(got[i]), []string{"new"}) {
					t.Errorf("fp %d facts = %v, want [new]", fp, contents(got[i]))
				}
			}

			// A later update through the absorbed alias reaches the whole group.
			if err := s.Update(ctx, fact.FromStrings([]string{"newest"}), []fingerprint.Fingerprint{2}); err != nil {
				t.Fatalf("Update: %v", err)
			}
			got, err = s.Get(ctx, fps)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			for i, fp := range fps {
				if !slices.Equal(contents(got[i]), []string{"newest"}) {
					t.Errorf("fp %d facts = %v, want [newest]", fp, contents(got[i]))
				}
			}
		})
	}
}

func TestFactStore_UnknownFingerprints(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			got, err := mk().Get(context.Background(), []fingerprint.Fingerprint{7})
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(got) != 1 || len(got[0]) != 0 {
				t.Errorf("Get = %v, want one empty list", got)
			}

			got, err = mk().Get(context.Background(), nil)
			if err != nil || got != nil {
				t.Errorf("Get(nil) = %v, %v", got, err)
			}
		})
	}
}

func TestFactStore_UpdateRequiresFingerprint(t *testing.T) {
	for name, mk := range implementations() {
		t.Run(name, func(t *testing.T) {
			err := mk().Update(context.Background(), fact.FromStrings([]string{"x"}), nil)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestStore_KeysAndTTL(t *testing.T) {
	kv := newMapKV()
	s := New(kv, time.Hour)

	if err := s.Update(context.Background(), fact.FromStrings([]string{"a"}), []fingerprint.Fingerprint{0xab, 0xcd}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if string(kv.data["ragpack:facts:000000ab"]) != `{"facts":["a"],"aliases":["000000cd"]}` {
		t.Errorf("record = %q", kv.data["ragpack:facts:000000ab"])
	}
	if string(kv.data["ragpack:facts:alias:000000cd"]) != "000000ab" {
		t.Errorf("alias = %q", kv.data["ragpack:facts:alias:000000cd"])
	}
	if kv.ttls["ragpack:facts:000000ab"] != time.Hour {
		t.Errorf("ttl = %v", kv.ttls["ragpack:facts:000000ab"])
	}
	if kv.ttls["ragpack:facts:alias:000000cd"] != time.Hour {
		t.Errorf("alias ttl = %v", kv.ttls["ragpack:facts:alias:000000cd"])
	}
}

func TestStore_BackendErrors(t *testing.T) {
	kv := newMapKV()
	kv.getErr = errors.New("conn refused")
	s := New(kv, 0)

	if _, err := s.Get(context.Background(), []fingerprint.Fingerprint{1}); !errors.Is(err, domain.ErrFactStoreUnavailable) {
		t.Errorf("Get error = %v, want ErrFactStoreUnavailable", err)
	}

	kv = newMapKV()
	kv.setErr = errors.New("read only")
	s = New(kv, 0)
	if err := s.Update(context.Background(), nil, []fingerprint.Fingerprint{1}); !errors.Is(err, domain.ErrFactStoreUnavailable) {
		t.Errorf("Update error = %v, want ErrFactStoreUnavailable", err)
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	kv := newMapKV()
	kv.data["ragpack:facts:00000001"] = []byte("{not json")
	s := New(kv, 0)

	if _, err := s.Get(context.Background(), []fingerprint.Fingerprint{1}); !errors.Is(err, domain.ErrFactStoreUnavailable) {
		t.Errorf("error = %v, want ErrFactStoreUnavailable", err)
	}
}
