package decompile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bifrost-sh/heimdall/snapshot"
)

// abiParam is one entry of an ABI function/event/error's inputs array.
type abiParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// abiEntry is one element of the standard Solidity ABI array (spec.md
// §6: "standard Solidity ABI array of function/event/error entries").
type abiEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name,omitempty"`
	Inputs          []abiParam `json:"inputs"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Anonymous       bool       `json:"anonymous,omitempty"`
}

// functionName strips the `(types...)` suffix a resolved
// signatures.Signature carries, leaving just the bare identifier ABI
// JSON's "name" field wants.
func functionName(signature string) string {
	if i := strings.IndexByte(signature, '('); i >= 0 {
		return signature[:i]
	}
	return signature
}

func stateMutability(fn *snapshot.AnalyzedFunction) string {
	switch {
	case fn.Pure:
		return "pure"
	case fn.View:
		return "view"
	case fn.Payable:
		return "payable"
	default:
		return "nonpayable"
	}
}

func namedParams(types []string) []abiParam {
	out := make([]abiParam, len(types))
	for i, t := range types {
		out[i] = abiParam{Name: paramName(i), Type: t}
	}
	return out
}

func paramName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return string(letters[i])
	}
	return fmt.Sprintf("arg%d", i)
}

// RenderABI builds the standard Solidity ABI JSON array (spec.md §6)
// covering every decompiled function plus every event/error it emits,
// deduplicated by selector/topic across the whole contract.
func RenderABI(fns []ContractFunction) ([]byte, error) {
	entries := make([]abiEntry, 0, len(fns))
	for _, f := range fns {
		snap := f.Snapshot
		entries = append(entries, abiEntry{
			Type:            "function",
			Name:            functionName(snap.Name),
			Inputs:          namedParams(snap.ArgTypes()),
			StateMutability: stateMutability(snap),
		})
	}

	seenEvents := make(map[[32]byte]bool)
	seenErrors := make(map[[4]byte]bool)
	for _, f := range fns {
		snap := f.Snapshot
		for topic, name := range snap.EventNames {
			if seenEvents[topic] {
				continue
			}
			seenEvents[topic] = true
			entries = append(entries, abiEntry{Type: "event", Name: functionName(name)})
		}
		for sel, name := range snap.ErrorNames {
			if seenErrors[sel] {
				continue
			}
			seenErrors[sel] = true
			entries = append(entries, abiEntry{Type: "error", Name: functionName(name)})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Name < entries[j].Name
	})

	return json.MarshalIndent(entries, "", "  ")
}

// ContractFunction pairs one decompiled function's IR with the snapshot
// it was built from, the unit Render/RenderABI operate over.
type ContractFunction struct {
	Decompiled *Function
	Snapshot   *snapshot.AnalyzedFunction
}
