package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Symbol is a named address.
type Symbol struct {
	Name string
	Addr uint64
}

// SymbolTable is an address-sorted set of symbols.
type SymbolTable struct {
	byAddr []Symbol
	byName map[string]uint64
}

// NewSymbolTable builds a table from syms. When two symbols share an
// address the first one listed wins the nearest lookup.
func NewSymbolTable(syms []Symbol) *SymbolTable {
	t := &SymbolTable{byName: make(map[string]uint64, len(syms))}
	t.byAddr = append(t.byAddr, syms...)
	sort.SliceStable(t.byAddr, func(i, j int) bool {
		return t.byAddr[i].Addr < t.byAddr[j].Addr
	})
	for _, s := range syms {
		if _, ok := t.byName[s.Name]; !ok {
			t.byName[s.Name] = s.Addr
		}
	}
	return t
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int {
	return len(t.byAddr)
}

// Symbols returns the symbols sorted by address.
func (t *SymbolTable) Symbols() []Symbol {
	return append([]Symbol(nil), t.byAddr...)
}

// Nearest returns the symbol at or before addr.
func (t *SymbolTable) Nearest(addr uint64) (string, uint64, bool) {
	i := sort.Search(len(t.byAddr), func(i int) bool {
		return t.byAddr[i].Addr > addr
	})
	if i == 0 {
		return "", 0, false
	}
	// Step back to the first symbol of a run sharing the address.
	s := t.byAddr[i-1]
	for i > 1 && t.byAddr[i-2].Addr == s.Addr {
		i--
		s = t.byAddr[i-1]
	}
	return s.Name, s.Addr, true
}

// Address looks up a symbol by name.
func (t *SymbolTable) Address(name string) (uint64, bool) {
	addr, ok := t.byName[name]
	return addr, ok
}

// Merge adds the symbols of other to t.
func (t *SymbolTable) Merge(other *SymbolTable) *SymbolTable {
	return NewSymbolTable(append(t.Symbols(), other.byAddr...))
}

// ReadSymbolMap parses a symbol map in nm format: one symbol per line as
// "<hex address> [<type>] <name>". Blank lines and lines starting with #
// are skipped.
func ReadSymbolMap(r io.Reader) (*SymbolTable, error) {
	var syms []Symbol
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("symbol map line %d: expected address and name", line)
		}
		hex := strings.TrimPrefix(strings.TrimPrefix(fields[0], "0x"), "#")
		addr, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("symbol map line %d: %w", line, err)
		}
		syms = append(syms, Symbol{Name: fields[len(fields)-1], Addr: addr})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol map: %w", err)
	}
	return NewSymbolTable(syms), nil
}

// LoadSymbolMap reads a symbol map file.
func LoadSymbolMap(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol map: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSymbolMap(f)
}
