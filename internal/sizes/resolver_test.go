package sizes

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
)

type stubCatalog struct {
	productSizes []commerce.Size
	productErr   error
	globalSizes  []commerce.Size
	globalErr    error

	productCalls int
	globalCalls  int
	lastLabel    string
}

func (s *stubCatalog) ProductSizes(context.Context, string) ([]commerce.Size, error) {
	s.productCalls++
	return s.productSizes, s.productErr
}

func (s *stubCatalog) FindSizes(_ context.Context, label string) ([]commerce.Size, error) {
	s.globalCalls++
	s.lastLabel = label
	return s.globalSizes, s.globalErr
}

func newResolver(t *testing.T, catalog *stubCatalog) *Resolver {
	t.Helper()
	r, err := NewResolver(catalog, nil)
	if err != nil {
		t.Fatalf("NewResolver() error: %v", err)
	}
	return r
}

func TestResolvePrefersProductAssociation(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalog{
		productSizes: []commerce.Size{{ID: "1", Value: "S"}, {ID: "2", Value: "M"}},
		globalSizes:  []commerce.Size{{ID: "99", Value: "M"}},
	}
	id, ok := newResolver(t, catalog).Resolve(context.Background(), "p1", "M")
	if !ok || id != "2" {
		t.Fatalf("expected product size 2, got %q ok=%v", id, ok)
	}
	if catalog.globalCalls != 0 {
		t.Fatalf("global catalog should not be queried on a product hit")
	}
}

func TestResolveFallsBackToGlobalCatalog(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalog{
		productSizes: []commerce.Size{{ID: "1", Value: "S"}},
		globalSizes:  []commerce.Size{{ID: "7", Value: "XL"}, {ID: "8", Value: "XL"}},
	}
	id, ok := newResolver(t, catalog).Resolve(context.Background(), "p1", "XL")
	if !ok || id != "7" {
		t.Fatalf("expected first global hit 7, got %q ok=%v", id, ok)
	}
	if catalog.lastLabel != "XL" {
		t.Fatalf("expected exact label query, got %q", catalog.lastLabel)
	}
}

func TestResolveIgnoresUnfilteredCatalogRecords(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalog{
		globalSizes: []commerce.Size{{ID: "1", Value: "S"}, {ID: "2", Value: "M"}, {ID: "3", Value: "L"}},
	}
	r := newResolver(t, catalog)
	if id, ok := r.Resolve(context.Background(), "", "L"); !ok || id != "3" {
		t.Fatalf("expected L to resolve to 3, got %q ok=%v", id, ok)
	}
	if id, ok := r.Resolve(context.Background(), "", "XXL"); ok || id != "" {
		t.Fatalf("expected miss for XXL, got %q", id)
	}
}

func TestResolveProductLookupFailureStillTriesCatalog(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalog{
		productErr:  errors.New("timeout"),
		globalSizes: []commerce.Size{{ID: "5", Value: "L"}},
	}
	id, ok := newResolver(t, catalog).Resolve(context.Background(), "p1", "L")
	if !ok || id != "5" {
		t.Fatalf("expected catalog hit 5, got %q ok=%v", id, ok)
	}
}

func TestResolveMissesAreNotErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]*stubCatalog{
		"no match":       {productSizes: []commerce.Size{{ID: "1", Value: "S"}}},
		"catalog failed": {globalErr: errors.New("boom")},
		"both failed":    {productErr: errors.New("boom"), globalErr: errors.New("boom")},
	}
	for name, catalog := range cases {
		catalog := catalog
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			id, ok := newResolver(t, catalog).Resolve(context.Background(), "p1", "XXL")
			if ok || id != "" {
				t.Fatalf("expected miss, got %q ok=%v", id, ok)
			}
		})
	}
}

func TestResolveSkipsEmptyLabel(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalog{}
	if _, ok := newResolver(t, catalog).Resolve(context.Background(), "p1", "  "); ok {
		t.Fatal("expected empty label to miss")
	}
	if catalog.productCalls+catalog.globalCalls != 0 {
		t.Fatalf("expected no lookups for empty label")
	}
}
