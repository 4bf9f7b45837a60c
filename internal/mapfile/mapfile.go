// Package mapfile reads GNU ld map files and answers address-to-symbol queries.
//
// Only the "Linker script and memory map" part of the file is used. Two kinds
// of lines matter there:
//
//	.main           0x0000000080000400     0x1230 load address 0x0000000000001000
//	                0x0000000080000400                func_80000400
//
// The first declares an output section (a load segment mapping ROM offsets to
// RAM addresses); the second names a symbol. Symbol assignments
// ("x = ADDR (.main)") are ignored.
package mapfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const memoryMapHeader = "Linker script and memory map"

// lookupCacheSize bounds the number of memoized address lookups.
const lookupCacheSize = 4096

// Symbol is a named address.
type Symbol struct {
	Name string
	Vram uint32
}

// Segment is an output section with both a RAM and a ROM address.
type Segment struct {
	Name string
	Vram uint32
	Vrom uint32
	Size uint32
}

func (s Segment) containsVram(addr uint32) bool {
	return addr >= s.Vram && uint64(addr) < uint64(s.Vram)+uint64(s.Size)
}

func (s Segment) containsVrom(off uint32) bool {
	return off >= s.Vrom && uint64(off) < uint64(s.Vrom)+uint64(s.Size)
}

func (s Segment) occupiesRom() bool {
	return s.Size > 0 && !strings.HasSuffix(strings.ToLower(s.Name), "bss")
}

type lookup struct {
	sym Symbol
	ok  bool
}

// MapFile is a parsed linker map. It is safe for concurrent use.
type MapFile struct {
	symbols  []Symbol // sorted by Vram, file order among equal addresses
	byName   map[string]Symbol
	segments []Segment // file order

	cache *lru.Cache[uint32, lookup]
}

// Load reads and parses the map file at path.
func Load(path string) (*MapFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map file: %w", err)
	}
	m, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads a map file from r.
func Parse(r io.Reader) (*MapFile, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i, l := range lines {
		if strings.HasPrefix(l, memoryMapHeader) {
			lines = lines[i+1:]
			break
		}
	}

	m := &MapFile{byName: make(map[string]Symbol)}
	pendingSection := ""
	for _, line := range lines {
		if line == "" {
			pendingSection = ""
			continue
		}
		fields := strings.Fields(line)
		indented := line[0] == ' ' || line[0] == '\t'

		if !indented {
			pendingSection = ""
			if !isSectionName(fields[0]) {
				continue
			}
			if len(fields) == 1 {
				// Long section names put the address on the next line.
				pendingSection = fields[0]
				continue
			}
			if seg, ok := parseSegment(fields[0], fields[1:]); ok {
				m.segments = append(m.segments, seg)
			}
			continue
		}

		if pendingSection != "" {
			if seg, ok := parseSegment(pendingSection, fields); ok {
				m.segments = append(m.segments, seg)
			}
			pendingSection = ""
			continue
		}

		if sym, ok := parseSymbol(fields); ok {
			m.symbols = append(m.symbols, sym)
			if _, dup := m.byName[sym.Name]; !dup {
				m.byName[sym.Name] = sym
			}
		}
	}

	sort.SliceStable(m.symbols, func(i, j int) bool { return m.symbols[i].Vram < m.symbols[j].Vram })

	cache, err := lru.New[uint32, lookup](lookupCacheSize)
	if err != nil {
		return nil, err
	}
	m.cache = cache
	return m, nil
}

func isSectionName(s string) bool {
	return s != "" && s[0] != '*' && !strings.Contains(s, "(")
}

// parseSegment parses "<vram> <size> [load address <vrom>]".
func parseSegment(name string, fields []string) (Segment, bool) {
	if len(fields) < 2 {
		return Segment{}, false
	}
	vram, ok1 := parseHex(fields[0])
	size, ok2 := parseHex(fields[1])
	if !ok1 || !ok2 {
		return Segment{}, false
	}
	seg := Segment{Name: name, Vram: vram, Vrom: vram, Size: size}
	if len(fields) >= 5 && fields[2] == "load" && fields[3] == "address" {
		vrom, ok := parseHex(fields[4])
		if !ok {
			return Segment{}, false
		}
		seg.Vrom = vrom
	}
	return seg, true
}

// parseSymbol accepts exactly "<address> <name>".
func parseSymbol(fields []string) (Symbol, bool) {
	if len(fields) != 2 {
		return Symbol{}, false
	}
	addr, ok := parseHex(fields[0])
	if !ok {
		return Symbol{}, false
	}
	name := fields[1]
	if _, isHex := parseHex(name); isHex || strings.ContainsAny(name, "=()") {
		return Symbol{}, false
	}
	return Symbol{Name: name, Vram: addr}, true
}

func parseHex(s string) (uint32, bool) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// Symbols returns the parsed symbols sorted by address.
func (m *MapFile) Symbols() []Symbol {
	out := make([]Symbol, len(m.symbols))
	copy(out, m.symbols)
	return out
}

// Segments returns the parsed output sections in file order.
func (m *MapFile) Segments() []Segment {
	out := make([]Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// Lookup returns the symbol with the given name.
func (m *MapFile) Lookup(name string) (Symbol, bool) {
	s, ok := m.byName[name]
	return s, ok
}

// SymbolAt returns the symbol covering addr: the closest symbol at or below
// addr, provided addr lies before the next symbol and inside the segment that
// holds the symbol.
func (m *MapFile) SymbolAt(addr uint32) (Symbol, bool) {
	if hit, ok := m.cache.Get(addr); ok {
		return hit.sym, hit.ok
	}
	sym, ok := m.symbolAt(addr)
	m.cache.Add(addr, lookup{sym: sym, ok: ok})
	return sym, ok
}

func (m *MapFile) symbolAt(addr uint32) (Symbol, bool) {
	// First symbol strictly above addr.
	next := sort.Search(len(m.symbols), func(i int) bool { return m.symbols[i].Vram > addr })
	if next == 0 {
		return Symbol{}, false
	}
	idx := next - 1
	// Among symbols sharing the address, prefer the first one in file order.
	for idx > 0 && m.symbols[idx-1].Vram == m.symbols[idx].Vram {
		idx--
	}
	sym := m.symbols[idx]

	if seg, ok := m.segmentForVram(sym.Vram); ok {
		return sym, seg.containsVram(addr)
	}
	return sym, addr == sym.Vram || next < len(m.symbols)
}

func (m *MapFile) segmentForVram(addr uint32) (Segment, bool) {
	for _, s := range m.segments {
		if s.containsVram(addr) {
			return s, true
		}
	}
	return Segment{}, false
}

// RomToVram converts a ROM offset into the RAM address it is loaded at.
func (m *MapFile) RomToVram(offset uint32) (uint32, bool) {
	for _, s := range m.segments {
		if s.occupiesRom() && s.containsVrom(offset) {
			return s.Vram + (offset - s.Vrom), true
		}
	}
	return 0, false
}
