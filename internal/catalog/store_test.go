package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	calls [][]string
}

func (r *recorder) onChange(visible []Product) {
	r.calls = append(r.calls, ids(visible))
}

func TestStoreInitRendersEverything(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.onChange)
	if s.Ready() {
		t.Fatalf("store should not be ready before Init")
	}

	s.Init(New(fixture()))

	if !s.Ready() {
		t.Fatalf("store should be ready after Init")
	}
	want := [][]string{{"p0000", "p0001", "p0002", "p0003", "p0004"}}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("change calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultFilterState(), s.FilterState()); diff != "" {
		t.Fatalf("unexpected default state:\n%s", diff)
	}
}

func TestStoreMutationsTriggerOneChangeEach(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.onChange)
	s.Init(New(fixture()))

	s.SetCategory("drinks")
	s.SetSearchTerm("z")
	s.SetSearchTerm("z")
	s.SetCategory(AllCategories)

	want := [][]string{
		{"p0000", "p0001", "p0002", "p0003", "p0004"},
		{"p0002", "p0003"},
		{"p0003"},
		{"p0003"},
		{"p0003"},
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("change calls mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p0003"}, ids(s.Visible())); diff != "" {
		t.Fatalf("Visible mismatch:\n%s", diff)
	}
}

func TestStoreIgnoresMutationsBeforeInit(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.onChange)
	s.SetCategory("meat")
	s.SetSearchTerm("hot")
	if len(rec.calls) != 0 {
		t.Fatalf("expected no change calls before Init, got %d", len(rec.calls))
	}
	if got := s.Visible(); len(got) != 0 {
		t.Fatalf("expected nothing visible before Init, got %d", len(got))
	}

	// The stored inputs still apply once a catalog arrives.
	s.Init(New(fixture()))
	if diff := cmp.Diff([]string{"p0001"}, ids(s.Visible())); diff != "" {
		t.Fatalf("Visible mismatch:\n%s", diff)
	}
	// The first render uses the same filtered set.
	if diff := cmp.Diff([][]string{{"p0001"}}, rec.calls); diff != "" {
		t.Fatalf("change calls mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreLoadFailureLeavesStoreUninitialised(t *testing.T) {
	rec := &recorder{}
	s := NewStore(rec.onChange)
	src := SourceFunc(func(context.Context) ([]json.RawMessage, error) {
		return nil, errors.New("offline")
	})
	if err := s.Load(context.Background(), src, nil); !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if s.Ready() || len(rec.calls) != 0 {
		t.Fatalf("store should stay uninitialised after a failed load")
	}
}

func TestStoreNilCallback(t *testing.T) {
	s := NewStore(nil)
	s.Init(New(fixture()))
	s.SetCategory("meat")
	if s.Catalog().Len() != 5 {
		t.Fatalf("unexpected catalog size %d", s.Catalog().Len())
	}
}
