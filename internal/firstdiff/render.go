package firstdiff

import (
	"encoding/binary"
	"fmt"
	"strings"

	"romforge/internal/insn"
	"romforge/internal/mapfile"
)

// WordSize is the width of one instruction.
const WordSize = 4

// Symbols is the part of a map artifact the report needs.
type Symbols interface {
	SymbolAt(vram uint32) (mapfile.Symbol, bool)
	RomToVram(offset uint32) (uint32, bool)
}

// RenderWord renders the bytes found at the start of a run. Fewer than
// WordSize bytes are printed raw. Words that fail to decode print as hex.
// A direct jump whose target is covered by a symbol in syms prints the
// symbol name in place of the address; syms may be nil.
func RenderWord(b []byte, vram uint32, dec insn.Decoder, syms Symbols) string {
	if len(b) < WordSize {
		return "residual " + hexBytes(b, "")
	}
	word := binary.BigEndian.Uint32(b)
	if dec == nil {
		return insn.Raw(word).Render("")
	}
	in, err := dec.Decode(word, vram)
	if err != nil || in == nil {
		return insn.Raw(word).Render("")
	}
	operand := ""
	if target, ok := in.JumpTarget(); ok && syms != nil {
		if sym, found := syms.SymbolAt(target); found {
			operand = symbolOperand(sym, target)
		}
	}
	return in.Render(operand)
}

func symbolOperand(sym mapfile.Symbol, addr uint32) string {
	if addr == sym.Vram {
		return sym.Name
	}
	return fmt.Sprintf("%s+0x%X", sym.Name, addr-sym.Vram)
}

// hexBytes prints b as upper-case hex pairs joined by sep.
func hexBytes(b []byte, sep string) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return strings.Join(parts, sep)
}

// location names the function holding ROM offset off, e.g. "func_80000400+0x8".
func location(syms Symbols, off int) (string, bool) {
	if syms == nil || off < 0 || uint64(off) > 0xFFFFFFFF {
		return "", false
	}
	vram, ok := syms.RomToVram(uint32(off))
	if !ok {
		return "", false
	}
	sym, ok := syms.SymbolAt(vram)
	if !ok {
		return "", false
	}
	return symbolOperand(sym, vram), true
}
