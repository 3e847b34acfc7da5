package cfg

import (
	"context"
	"strings"
	"testing"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

func TestBuildForksIntoTwoBlocksWithLabeledEdges(t *testing.T) {
	code := []byte{
		byte(opcodes.JUMPDEST),
		byte(opcodes.PUSH1), 0x01,
		byte(opcodes.PUSH1), 0x07,
		byte(opcodes.JUMPI),
		byte(opcodes.STOP),
		byte(opcodes.JUMPDEST),
		byte(opcodes.STOP),
	}
	exec := symbolic.NewExecutor(symbolic.Options{})
	res := exec.Run(context.Background(), code, [4]byte{}, 0, vm.Context{})

	g := Build(res.Trace)
	blocks := g.Blocks()
	if len(blocks) != 3 {
		t.Fatalf("len(blocks) = %d, want 3 (entry + fall-through + taken)", len(blocks))
	}
	if g.NumEdges() != 2 {
		t.Fatalf("NumEdges() = %d, want 2", g.NumEdges())
	}

	dot := g.DOT()
	if !strings.Contains(dot, `label="true"`) || !strings.Contains(dot, `label="false"`) {
		t.Fatalf("DOT output missing true/false edge labels:\n%s", dot)
	}
}
