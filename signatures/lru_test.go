package signatures

import (
	"context"
	"testing"
)

type countingResolver struct {
	calls int
	sig   []Signature
}

func (r *countingResolver) ResolveFunction(ctx context.Context, selector [4]byte) ([]Signature, error) {
	r.calls++
	return r.sig, nil
}
func (r *countingResolver) ResolveEvent(context.Context, [32]byte) ([]Signature, error) { return nil, nil }
func (r *countingResolver) ResolveError(context.Context, [4]byte) ([]Signature, error)  { return nil, nil }

func TestLRUCacheDeduplicatesLookups(t *testing.T) {
	inner := &countingResolver{sig: []Signature{{Name: "transfer"}}}
	cached := NewLRUCache(inner, 8)

	sel := [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	for i := 0; i < 5; i++ {
		sigs, err := cached.ResolveFunction(context.Background(), sel)
		if err != nil {
			t.Fatalf("ResolveFunction error: %v", err)
		}
		if len(sigs) != 1 || sigs[0].Name != "transfer" {
			t.Fatalf("unexpected signatures: %+v", sigs)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner resolver called %d times, want 1 (cached)", inner.calls)
	}
}

func TestNoneResolverAlwaysMisses(t *testing.T) {
	r := None()
	sigs, err := r.ResolveFunction(context.Background(), [4]byte{})
	if err != nil || sigs != nil {
		t.Fatalf("None() resolver should miss silently, got %v, %v", sigs, err)
	}
}
