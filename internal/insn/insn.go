// Package insn turns 32-bit words from a ROM image into printable
// instructions.
//
// The package does not implement an instruction set. It defines the Decoder
// seam the divergence report uses and ships MIPSJumps, which recognises only
// the forms the report cares about: absolute jumps and calls. A complete
// disassembler can be plugged in by implementing Decoder.
package insn

import (
	"errors"
	"fmt"
)

// Instruction is one decoded word.
type Instruction interface {
	// Word is the raw big-endian word.
	Word() uint32
	// JumpTarget reports the absolute address of a direct jump or call.
	JumpTarget() (uint32, bool)
	// Render formats the instruction. A non-empty operand replaces the
	// numeric jump target.
	Render(operand string) string
}

// Decoder decodes the word found at address vram.
type Decoder interface {
	Decode(word, vram uint32) (Instruction, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(word, vram uint32) (Instruction, error)

func (f DecoderFunc) Decode(word, vram uint32) (Instruction, error) { return f(word, vram) }

// ErrUnaligned is returned for words that do not start on a 4-byte boundary.
var ErrUnaligned = errors.New("instruction address is not word aligned")

// Raw renders any word as a data directive.
type Raw uint32

func (r Raw) Word() uint32               { return uint32(r) }
func (r Raw) JumpTarget() (uint32, bool) { return 0, false }
func (r Raw) Render(string) string       { return fmt.Sprintf(".word 0x%08X", uint32(r)) }

// Jump is a j or jal with its resolved absolute target.
type Jump struct {
	word   uint32
	Link   bool
	Target uint32
}

func (j Jump) Word() uint32               { return j.word }
func (j Jump) JumpTarget() (uint32, bool) { return j.Target, true }

func (j Jump) Mnemonic() string {
	if j.Link {
		return "jal"
	}
	return "j"
}

func (j Jump) Render(operand string) string {
	if operand == "" {
		operand = fmt.Sprintf("0x%08X", j.Target)
	}
	return j.Mnemonic() + " " + operand
}

// Fixed is an instruction with no operands worth resolving.
type Fixed struct {
	word uint32
	Text string
}

func (f Fixed) Word() uint32               { return f.word }
func (f Fixed) JumpTarget() (uint32, bool) { return 0, false }
func (f Fixed) Render(string) string       { return f.Text }

const (
	opJ   = 0x02
	opJAL = 0x03

	wordNop    = 0x00000000
	wordJumpRA = 0x03E00008
)

// MIPSJumps is the built-in decoder for big-endian MIPS (VR4300) images.
type MIPSJumps struct{}

func (MIPSJumps) Decode(word, vram uint32) (Instruction, error) {
	if vram%4 != 0 {
		return nil, fmt.Errorf("%w: 0x%08X", ErrUnaligned, vram)
	}
	switch word {
	case wordNop:
		return Fixed{word: word, Text: "nop"}, nil
	case wordJumpRA:
		return Fixed{word: word, Text: "jr $ra"}, nil
	}
	switch op := word >> 26; op {
	case opJ, opJAL:
		return Jump{word: word, Link: op == opJAL, Target: JumpTarget(word, vram)}, nil
	}
	return Raw(word), nil
}

// JumpTarget computes the absolute target of a j/jal encoded in word and
// located at vram. The upper four bits come from the delay slot address. An
// unknown location (vram 0) is assumed to be in KSEG0.
func JumpTarget(word, vram uint32) uint32 {
	index := (word & 0x03FFFFFF) << 2
	if vram == 0 {
		return index | 0x80000000
	}
	return index | ((vram + 4) & 0xF0000000)
}
