// Package disasm renders raw bytecode into the disassembly text format
// spec.md §6 describes, and implements the supplemented compiler-
// fingerprinting and minimal-proxy detection features carried over from
// original_source/common/src/ether/compiler.rs (spec.md §6 of
// SPEC_FULL.md). It is grounded in the shape of go-ethereum's
// `core/asm` lexer/compiler (disassembly as a flat instruction stream
// keyed by PC), adapted since heimdall disassembles arbitrary deployed
// bytecode rather than compiling Yul/EVM assembly source.
package disasm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bifrost-sh/heimdall/opcodes"
)

// ErrInvalidBytecode is returned for non-hex, odd-length, or empty input.
var ErrInvalidBytecode = errors.New("disasm: invalid bytecode")

// DecodeHex parses a 0x-prefixed or bare hex string into bytes, per
// spec.md §6 Input formats.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidBytecode)
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length", ErrInvalidBytecode)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: non-hex character", ErrInvalidBytecode)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// Line is one disassembled instruction.
type Line struct {
	PC        uint64
	Op        opcodes.OpCode
	Immediate []byte // non-nil only for PUSHn
}

// Disassemble walks code and returns one Line per instruction,
// including a trailing PUSHn's immediate bytes inline. A truncated
// PUSH at the end of the code is still emitted, with whatever bytes
// remain.
func Disassemble(code []byte) []Line {
	var lines []Line
	i := 0
	for i < len(code) {
		op := opcodes.OpCode(code[i])
		n := opcodes.PushBytes(op)
		line := Line{PC: uint64(i), Op: op}
		if n > 0 {
			end := i + 1 + n
			if end > len(code) {
				end = len(code)
			}
			line.Immediate = append([]byte(nil), code[i+1:end]...)
		}
		lines = append(lines, line)
		i += 1 + n
	}
	return lines
}

// PCFormat selects how disassembly text renders program counters.
type PCFormat int

const (
	PCHex PCFormat = iota
	PCDecimal
)

// String renders lines in the "<pc> <MNEMONIC> [<immediate hex>]" text
// format of spec.md §6, one instruction per line.
func String(lines []Line, format PCFormat) string {
	var b strings.Builder
	for _, l := range lines {
		switch format {
		case PCDecimal:
			fmt.Fprintf(&b, "%d %s", l.PC, l.Op)
		default:
			fmt.Fprintf(&b, "%06x %s", l.PC, l.Op)
		}
		if len(l.Immediate) > 0 {
			fmt.Fprintf(&b, " 0x%x", l.Immediate)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Compiler identifies the toolchain that produced a bytecode blob.
type Compiler string

const (
	CompilerUnknown Compiler = "unknown"
	CompilerSolc    Compiler = "solc"
	CompilerVyper   Compiler = "vyper"
)

// Fingerprint is the result of matching a known compiler-prefix pattern
// against the start of runtime bytecode.
type Fingerprint struct {
	Compiler     Compiler
	VersionRange string
}

var fingerprints = []struct {
	prefix []byte
	fp     Fingerprint
}{
	// spec.md §8 scenario 1.
	{[]byte{0x60, 0x80, 0x60, 0x40, 0x52}, Fingerprint{CompilerSolc, "0.4.22+"}},
	// spec.md §8 scenario 2.
	{[]byte{0x60, 0x04, 0x36, 0x10, 0x15}, Fingerprint{CompilerVyper, "0.2.0-0.2.4,0.2.11-0.3.3"}},
}

// DetectFingerprint matches code's prefix against known compiler
// signatures. ok is false when nothing matched.
func DetectFingerprint(code []byte) (fp Fingerprint, ok bool) {
	for _, f := range fingerprints {
		if len(code) >= len(f.prefix) && hasPrefix(code, f.prefix) {
			return f.fp, true
		}
	}
	return Fingerprint{}, false
}

func hasPrefix(code, prefix []byte) bool {
	for i, b := range prefix {
		if code[i] != b {
			return false
		}
	}
	return true
}

// minimalProxyPrefix and minimalProxySuffix are the fixed bytes of the
// minimal proxy runtime code on either side of the 20-byte
// implementation address (spec.md §8 scenario 3); DetectProxy does not
// compare the address bytes.
var minimalProxyPrefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73}
var minimalProxySuffix = []byte{0x5a, 0xf4, 0x3d, 0x82, 0x80, 0x3e, 0x90, 0x3d, 0x91, 0x60, 0x57, 0xfd, 0x5b, 0xf3}

// ProxyKind names a detected proxy pattern.
type ProxyKind string

const ProxyMinimal ProxyKind = "minimal"

// DetectProxy reports whether code is an EIP-1167 minimal proxy: the
// fixed prefix/suffix around a 20-byte implementation address.
func DetectProxy(code []byte) (kind ProxyKind, impl [20]byte, ok bool) {
	want := len(minimalProxyPrefix) + 20 + len(minimalProxySuffix)
	if len(code) != want {
		return "", impl, false
	}
	if !hasPrefix(code, minimalProxyPrefix) {
		return "", impl, false
	}
	suffixStart := len(minimalProxyPrefix) + 20
	if !hasPrefix(code[suffixStart:], minimalProxySuffix) {
		return "", impl, false
	}
	copy(impl[:], code[len(minimalProxyPrefix):suffixStart])
	return ProxyMinimal, impl, true
}
