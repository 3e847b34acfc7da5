// Package signatures defines the selector/event/error → human name
// resolution collaborator described in spec.md §6 and §9 ("Global
// mutable signature cache" → injectable capability). The core never
// talks to the filesystem or the 4byte-directory HTTP API directly:
// it is handed a Resolver and falls back to synthetic names when one
// isn't configured or comes up empty.
package signatures

import (
	"context"
	"fmt"
)

// Signature is one resolved candidate for a selector or event topic.
// Multiple Signatures can share a selector (hash collisions in the
// 4byte space are common), which is why Resolve* return a slice.
type Signature struct {
	Name      string
	Inputs    []string
	Signature string
}

// Resolver looks up human-readable names for function selectors, event
// topics, and custom-error selectors. Implementations live outside the
// core (spec.md §1: "the on-disk signature cache and 4byte-directory
// HTTP lookups ... are external collaborators"); the core only depends
// on this interface.
type Resolver interface {
	ResolveFunction(ctx context.Context, selector [4]byte) ([]Signature, error)
	ResolveEvent(ctx context.Context, topic0 [32]byte) ([]Signature, error)
	ResolveError(ctx context.Context, selector [4]byte) ([]Signature, error)
}

// UnresolvedFunctionName is the placeholder used when a selector has no
// resolver, or the resolver found nothing, per spec.md §4.7.
func UnresolvedFunctionName(selector [4]byte) string {
	return fmt.Sprintf("Unresolved_%x", selector)
}

// UnresolvedEventName is the placeholder for an unresolved event topic.
func UnresolvedEventName(topic0 [32]byte) string {
	return fmt.Sprintf("Event_%x", topic0[:4])
}

// UnresolvedErrorName is the placeholder for an unresolved custom error.
func UnresolvedErrorName(selector [4]byte) string {
	return fmt.Sprintf("CustomError_%x", selector)
}

// noneResolver always misses; it is the zero-configuration default for
// runs with no cache or network collaborator wired in.
type noneResolver struct{}

// None returns a Resolver that never finds anything, so callers can
// always pass a non-nil Resolver and let the Unresolved_*/Event_*/
// CustomError_* naming kick in uniformly.
func None() Resolver { return noneResolver{} }

func (noneResolver) ResolveFunction(context.Context, [4]byte) ([]Signature, error)  { return nil, nil }
func (noneResolver) ResolveEvent(context.Context, [32]byte) ([]Signature, error)    { return nil, nil }
func (noneResolver) ResolveError(context.Context, [4]byte) ([]Signature, error)     { return nil, nil }
