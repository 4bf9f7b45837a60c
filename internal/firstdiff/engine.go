// Package firstdiff locates and explains the places where a built ROM image
// differs from the reference image.
package firstdiff

import (
	"fmt"
	"iter"
	"strings"

	"romforge/internal/insn"
)

// DefaultCount is the number of runs reported when Engine.MaxCount is unset.
const DefaultCount = 5

// Engine configures a diagnosis.
type Engine struct {
	// Decoder renders the word at each run. Nil means insn.MIPSJumps.
	Decoder insn.Decoder
	// MaxCount bounds the number of entries; values below 1 mean DefaultCount.
	MaxCount int
	// Separators prints bytes as "0C:00:01:20" instead of "0C000120".
	Separators bool
}

// Entry describes one divergence run.
type Entry struct {
	Run Run
	// Candidate and Reference hold the aligned word containing the run start,
	// shorter when the image ends inside it.
	Candidate []byte
	Reference []byte
	// Vram is the RAM address of the run start in the candidate image, when
	// its map places the offset in a load segment.
	Vram    uint32
	HasVram bool
	// Text is the rendered candidate word.
	Text string
	// CandidateSymbol and ReferenceSymbol name the function holding the run in
	// each image, empty when unknown.
	CandidateSymbol string
	ReferenceSymbol string

	separators bool
}

// Bytes formats the candidate and reference bytes side by side.
func (e Entry) Bytes() string {
	sep := ""
	if e.separators {
		sep = ":"
	}
	return hexBytes(e.Candidate, sep) + " vs " + hexBytes(e.Reference, sep)
}

// Context reports where the run sits in each image.
func (e Entry) Context() string {
	switch {
	case e.CandidateSymbol == "" && e.ReferenceSymbol == "":
		return ""
	case e.CandidateSymbol == e.ReferenceSymbol:
		return "in " + e.CandidateSymbol
	}
	cand, ref := e.CandidateSymbol, e.ReferenceSymbol
	if cand == "" {
		cand = "?"
	}
	if ref == "" {
		ref = "?"
	}
	return fmt.Sprintf("in %s (expected %s)", cand, ref)
}

func (e Entry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ROM 0x%06X", e.Run.Offset)
	if e.HasVram {
		fmt.Fprintf(&b, " (RAM 0x%08X)", e.Vram)
	}
	fmt.Fprintf(&b, ", %d byte", e.Run.Length)
	if e.Run.Length != 1 {
		b.WriteByte('s')
	}
	fmt.Fprintf(&b, ": %s  %s", e.Bytes(), e.Text)
	if ctx := e.Context(); ctx != "" {
		b.WriteString("  ")
		b.WriteString(ctx)
	}
	return b.String()
}

// SizeMismatch records images of different length. Only the common prefix
// is scanned for runs.
type SizeMismatch struct {
	Candidate int
	Reference int
}

func (s SizeMismatch) String() string {
	return fmt.Sprintf("size differs: built image is 0x%X bytes, expected 0x%X", s.Candidate, s.Reference)
}

// Report is the result of a diagnosis. An empty report means the images are
// identical.
type Report struct {
	Entries      []Entry
	SizeMismatch *SizeMismatch
}

// Empty reports whether no divergence was found.
func (r Report) Empty() bool { return len(r.Entries) == 0 && r.SizeMismatch == nil }

func (e Engine) maxCount() int {
	if e.MaxCount < 1 {
		return DefaultCount
	}
	return e.MaxCount
}

func (e Engine) decoder() insn.Decoder {
	if e.Decoder == nil {
		return insn.MIPSJumps{}
	}
	return e.Decoder
}

// Diagnose compares candidate against reference. Either map may be nil.
func (e Engine) Diagnose(candidate, reference []byte, candidateMap, referenceMap Symbols) Report {
	var r Report
	for entry := range e.Entries(candidate, reference, candidateMap, referenceMap) {
		r.Entries = append(r.Entries, entry)
	}
	if len(candidate) != len(reference) {
		r.SizeMismatch = &SizeMismatch{Candidate: len(candidate), Reference: len(reference)}
	}
	return r
}

// Entries yields report entries lazily, in offset order. Symbol substitution
// in the rendered instruction uses candidateMap only.
func (e Engine) Entries(candidate, reference []byte, candidateMap, referenceMap Symbols) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		sc := NewScanner(candidate, reference, e.maxCount())
		dec := e.decoder()
		for sc.Scan() {
			if !yield(e.entry(sc.Run(), candidate, reference, candidateMap, referenceMap, dec)) {
				return
			}
		}
	}
}

func (e Engine) entry(run Run, candidate, reference []byte, cmap, rmap Symbols, dec insn.Decoder) Entry {
	// Runs are byte exact but instructions are words: a changed call target
	// usually differs only in its low bytes.
	start := run.Offset &^ (WordSize - 1)
	ent := Entry{
		Run:        run,
		Candidate:  window(candidate, start),
		Reference:  window(reference, start),
		separators: e.Separators,
	}
	var wordVram uint32
	if cmap != nil {
		ent.Vram, ent.HasVram = cmap.RomToVram(uint32(run.Offset))
		if ent.HasVram {
			wordVram = ent.Vram - uint32(run.Offset-start)
		}
	}
	ent.Text = RenderWord(ent.Candidate, wordVram, dec, cmap)
	ent.CandidateSymbol, _ = location(cmap, run.Offset)
	ent.ReferenceSymbol, _ = location(rmap, run.Offset)
	return ent
}

func window(b []byte, off int) []byte {
	end := off + WordSize
	if end > len(b) {
		end = len(b)
	}
	out := make([]byte, end-off)
	copy(out, b[off:end])
	return out
}
