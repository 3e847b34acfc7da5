package decompile

import (
	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/signatures"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// eventHeuristic is spec.md §4.8 item 1: on LOGn, emit `emit X(...)`
// when the topic resolves to a known event, else the raw
// `log<N>(memory[a:b], topics...)` form.
type eventHeuristic struct{}

func (eventHeuristic) Name() string { return "event_heuristic" }

func (eventHeuristic) Apply(b *Builder, st symbolic.State) ([]ir.Stmt, bool) {
	ins := st.Instruction
	if !opcodes.IsLog(ins.Opcode) {
		return nil, false
	}
	n := int(ins.Opcode - opcodes.LOG0)
	if len(ins.InputOperations) < 2+n {
		return nil, true
	}

	data := ir.Load{Type: ir.Word, Space: ir.SpaceMemory, Addr: b.expr(ins.InputOperations[0])}
	topics := make([]ir.Expr, n)
	for i := 0; i < n; i++ {
		topics[i] = b.expr(ins.InputOperations[2+i])
	}

	return []ir.Stmt{ir.Log{Name: b.resolveEventName(ins), Topics: topics, Data: data}}, true
}

// resolveEventName looks up the name C7's snapshot already resolved for
// this LOGn's first topic (snapshot.Analyze queried the signature
// resolver once per distinct topic the whole trace touches). LOG0 has
// no topic to key by and always renders raw, per spec.md §4.7. A topic
// the snapshot could only name with its Event_ placeholder counts as
// unresolved and also renders raw.
func (b *Builder) resolveEventName(ins vm.Instruction) string {
	n := int(ins.Opcode - opcodes.LOG0)
	if n == 0 || b.snapshot == nil || len(ins.Inputs) < 3 {
		return ""
	}
	topic := ins.Inputs[2].Bytes32()
	name := b.snapshot.EventNames[topic]
	if name == signatures.UnresolvedEventName(topic) {
		return ""
	}
	return name
}
