package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

// CSVHeader is the fixed column order spec.md §6 defines for the
// snapshot CSV output format.
func CSVHeader() []string {
	return []string{
		"selector", "entry_point", "pure", "view", "payable",
		"gas_min", "gas_max", "gas_avg", "branch_count",
		"arg_types", "storage_slots", "events", "errors", "external_calls",
	}
}

func hexSlice32(keys [][32]byte) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("0x%x", k)
	}
	sort.Strings(out)
	return out
}

func (fn *AnalyzedFunction) storageSlotsColumn() string {
	return strings.Join(hexSlice32(fn.StorageWritten.Union(fn.StorageRead).ToSlice()), ";")
}

func (fn *AnalyzedFunction) eventsColumn() string {
	names := make([]string, 0, len(fn.EventNames))
	for _, name := range fn.EventNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ";")
}

func (fn *AnalyzedFunction) errorsColumn() string {
	names := make([]string, 0, len(fn.ErrorNames))
	for _, name := range fn.ErrorNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ";")
}

// Row renders fn as one CSV record matching CSVHeader's column order.
func (fn *AnalyzedFunction) Row() []string {
	return []string{
		fmt.Sprintf("0x%x", fn.Selector),
		fmt.Sprintf("%d", fn.EntryPoint),
		fmt.Sprintf("%t", fn.Pure),
		fmt.Sprintf("%t", fn.View),
		fmt.Sprintf("%t", fn.Payable),
		fmt.Sprintf("%d", fn.GasMin),
		fmt.Sprintf("%d", fn.GasMax),
		fmt.Sprintf("%.1f", fn.GasAvg),
		fmt.Sprintf("%d", fn.BranchCount),
		strings.Join(fn.ArgTypes(), ";"),
		fn.storageSlotsColumn(),
		fn.eventsColumn(),
		fn.errorsColumn(),
		strings.Join(fn.ExternalCalls, ";"),
	}
}

// WriteCSV renders fns as the snapshot CSV format (header + one row per
// function, selectors in the order given) to w.
func WriteCSV(w io.Writer, fns []*AnalyzedFunction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return err
	}
	for _, fn := range fns {
		if err := cw.Write(fn.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
