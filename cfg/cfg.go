// Package cfg implements C6: folding a VMTrace tree into a labeled
// directed graph of basic blocks, with edges annotated by the JUMPI
// condition that separates them. It reuses a real graph library
// (github.com/heimdalr/dag, already part of the teacher's own go.mod)
// instead of a hand-rolled adjacency map, per DESIGN.md.
package cfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/heimdalr/dag"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// Block is one basic block: a maximal run of operations between
// JUMP/JUMPI boundaries, labeled by its starting PC.
type Block struct {
	StartPC uint64
	Lines   []string
}

// ID implements dag.IDInterface so Block can be a DAG vertex directly.
func (b *Block) ID() string { return fmt.Sprintf("%d", b.StartPC) }

type edge struct {
	From, To uint64
	Taken    bool
}

// Graph is the CFG: blocks interned by starting PC (so re-entered
// blocks, e.g. a loop header, share one node) plus the edges between
// them.
type Graph struct {
	dag    *dag.DAG
	blocks map[uint64]*Block
	edges  []edge
}

// Build walks trace and folds it into a Graph. A nil trace yields an
// empty graph.
func Build(trace *symbolic.VMTrace) *Graph {
	g := &Graph{dag: dag.NewDAG(), blocks: make(map[uint64]*Block)}
	g.walk(trace)
	return g
}

func (g *Graph) walk(t *symbolic.VMTrace) {
	if t == nil {
		return
	}
	firstSeen := g.intern(t)
	if len(t.Children) != 2 {
		return
	}
	g.edges = append(g.edges, edge{From: t.PC, To: t.Children[0].PC, Taken: false})
	g.edges = append(g.edges, edge{From: t.PC, To: t.Children[1].PC, Taken: true})
	if !firstSeen {
		// This PC's subtree was already explored from its first
		// occurrence; stop here to avoid re-walking a loop back-edge
		// forever. The edge above is still recorded.
		return
	}
	for _, c := range t.Children {
		g.walk(c)
	}
}

// intern records a block for t.PC if not already present and returns
// whether this call created it.
func (g *Graph) intern(t *symbolic.VMTrace) bool {
	if _, ok := g.blocks[t.PC]; ok {
		return false
	}
	b := &Block{StartPC: t.PC}
	for _, op := range t.Operations {
		b.Lines = append(b.Lines, formatInstruction(op.Instruction))
	}
	g.blocks[t.PC] = b
	_, _ = g.dag.AddVertex(b)
	return true
}

func formatInstruction(ins vm.Instruction) string {
	if opcodes.IsPush(ins.Opcode) && len(ins.Outputs) == 1 {
		return fmt.Sprintf("%06x %s 0x%s", ins.PC, ins.Opcode, ins.Outputs[0].Hex())
	}
	return fmt.Sprintf("%06x %s", ins.PC, ins.Opcode)
}

// Blocks returns every interned block, sorted by starting PC.
func (g *Graph) Blocks() []*Block {
	out := make([]*Block, 0, len(g.blocks))
	for _, b := range g.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartPC < out[j].StartPC })
	return out
}

// NumEdges returns the number of distinct edges in the graph.
func (g *Graph) NumEdges() int {
	return len(g.dedupedEdges())
}

func (g *Graph) dedupedEdges() []edge {
	type key struct {
		from, to uint64
	}
	seen := make(map[key]bool, len(g.edges))
	var out []edge
	for _, e := range g.edges {
		k := key{e.From, e.To}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// DOT renders the graph as Graphviz DOT text, per spec.md §6: nodes
// keyed by starting PC with \l-separated assembly-line labels, edges
// labeled "true"/"false" and colored green/red.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph CFG {\n")
	for _, blk := range g.Blocks() {
		label := strings.Join(blk.Lines, `\l`)
		if label != "" {
			label += `\l`
		}
		fmt.Fprintf(&b, "  %d [shape=box label=\"%s\"];\n", blk.StartPC, escapeDOT(label))
	}
	for _, e := range g.dedupedEdges() {
		color, label := "red", "false"
		if e.Taken {
			color, label = "green", "true"
		}
		fmt.Fprintf(&b, "  %d -> %d [label=\"%s\", color=%s];\n", e.From, e.To, label, color)
	}
	b.WriteString("}\n")
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
