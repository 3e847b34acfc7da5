// Package analysis is the driver (spec.md §5): it discovers selectors,
// runs C3/C4's symbolic executor over each one in a bounded worker
// pool, and folds the results into C6/C7/C8's CFG, snapshot, and
// decompiled IR, grounded in cmd/geth's
// lag_between_tx_inclusion_test.go worker-pool shape (a buffered task
// channel drained by errgroup.Go workers) rather than a hand-rolled
// sync.WaitGroup loop.
package analysis

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bifrost-sh/heimdall/cfg"
	"github.com/bifrost-sh/heimdall/decompile"
	"github.com/bifrost-sh/heimdall/disasm"
	"github.com/bifrost-sh/heimdall/selectors"
	"github.com/bifrost-sh/heimdall/signatures"
	"github.com/bifrost-sh/heimdall/snapshot"
	"github.com/bifrost-sh/heimdall/symbolic"
	"github.com/bifrost-sh/heimdall/vm"
)

// Options configures one Run over a bytecode blob.
type Options struct {
	// Workers bounds how many selectors are analyzed concurrently.
	// Zero means runtime.NumCPU(), per spec.md §5's "bounded worker
	// pool (default = CPU count)".
	Workers int

	Executor symbolic.Options
	Context  vm.Context
	Resolver signatures.Resolver
	Pipeline []decompile.Heuristic
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Resolver == nil {
		o.Resolver = signatures.None()
	}
	return o
}

// FunctionResult is everything derived for one selector.
type FunctionResult struct {
	Selector   [4]byte
	EntryPoint uint64
	Trace      *symbolic.VMTrace
	CFG        *cfg.Graph
	Snapshot   *snapshot.AnalyzedFunction
	Decompiled *decompile.Function
	TimedOut   bool
}

// Report is the whole-contract result: one FunctionResult per
// discovered selector plus the code-level fingerprint and minimal-proxy
// detection C5's sibling heuristics contribute.
type Report struct {
	Functions   []FunctionResult
	Fingerprint disasm.Fingerprint
	HasFingerprint bool
	ProxyKind    disasm.ProxyKind
	ProxyTarget  [20]byte
	IsProxy      bool
}

// ContractFunctions projects Functions into the shape decompile.Render
// wants, selectors sorted for deterministic output (spec.md §7
// Determinism).
func (r *Report) ContractFunctions() []decompile.ContractFunction {
	out := make([]decompile.ContractFunction, len(r.Functions))
	for i, f := range r.Functions {
		out[i] = decompile.ContractFunction{Decompiled: f.Decompiled, Snapshot: f.Snapshot}
	}
	return out
}

// Run discovers every selector in code (C5), then fans out C3/C4's
// symbolic execution, C6's CFG build, C7's snapshot, and C8's
// decompilation across a bounded worker pool. Selectors share no
// mutable state (spec.md §5), so task order is undefined but the final
// Report is sorted by selector for determinism.
func Run(ctx context.Context, code []byte, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	entries := selectors.Discover(ctx, code)
	sels := make([][4]byte, 0, len(entries))
	for sel := range entries {
		sels = append(sels, sel)
	}
	sort.Slice(sels, func(i, j int) bool { return string(sels[i][:]) < string(sels[j][:]) })

	tasks := make(chan [4]byte, len(sels))
	for _, sel := range sels {
		tasks <- sel
	}
	close(tasks)

	results := make([]FunctionResult, len(sels))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			for sel := range tasks {
				idx := indexOf(sels, sel)
				results[idx] = analyzeSelector(gctx, code, sel, entries[sel], opts)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Functions: results}
	if fp, ok := disasm.DetectFingerprint(code); ok {
		report.Fingerprint, report.HasFingerprint = fp, true
	}
	if kind, target, ok := disasm.DetectProxy(code); ok {
		report.IsProxy, report.ProxyKind, report.ProxyTarget = true, kind, target
	}
	return report, nil
}

func indexOf(sels [][4]byte, sel [4]byte) int {
	for i, s := range sels {
		if s == sel {
			return i
		}
	}
	return -1
}

func analyzeSelector(ctx context.Context, code []byte, sel [4]byte, entryPC uint64, opts Options) FunctionResult {
	exec := symbolic.NewExecutor(opts.Executor)
	result := exec.Run(ctx, code, sel, entryPC, opts.Context)

	graph := cfg.Build(result.Trace)
	snap := snapshot.Analyze(ctx, result.Trace, sel, entryPC, opts.Resolver)
	fn := decompile.Decompile(ctx, result.Trace, snap, opts.Pipeline)

	return FunctionResult{
		Selector:   sel,
		EntryPoint: entryPC,
		Trace:      result.Trace,
		CFG:        graph,
		Snapshot:   snap,
		Decompiled: fn,
		TimedOut:   result.TimedOut,
	}
}
