// Package loader loads MMIX programs: ELF executables, flat memory images
// and symbol maps.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/mmixsim/mem"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Perm converts the flags to page permissions.
func (f SegmentFlags) Perm() mem.Perm {
	var p mem.Perm
	if f&SegmentFlagExecute != 0 {
		p |= mem.PermExec
	}
	if f&SegmentFlagWrite != 0 {
		p |= mem.PermWrite
	}
	if f&SegmentFlagRead != 0 {
		p |= mem.PermRead
	}
	return p
}

// Segment represents a loadable segment.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Image returns the segment contents padded with zeros to MemSize.
func (s Segment) Image() []byte {
	if uint64(len(s.Data)) >= s.MemSize {
		return s.Data
	}
	img := make([]byte, s.MemSize)
	copy(img, s.Data)
	return img
}

// Program represents a loaded program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments.
	Segments []Segment
	// Symbols holds the program's symbols; it is empty, never nil, when
	// the file carries none.
	Symbols *SymbolTable
}

// Target receives a program's segments.
type Target interface {
	LoadSegment(va uint64, data []byte, perm mem.Perm) error
	SetEntry(pc uint64)
}

// LoadInto copies every segment into t and sets the entry point.
func (p *Program) LoadInto(t Target) error {
	for _, seg := range p.Segments {
		if err := t.LoadSegment(seg.VirtAddr, seg.Image(), seg.Flags.Perm()); err != nil {
			return fmt.Errorf("failed to load segment at 0x%x: %w", seg.VirtAddr, err)
		}
	}
	t.SetEntry(p.EntryPoint)
	return nil
}

// Load parses an MMIX ELF executable.
func Load(path string) (*Program, error) {
	// Open the ELF file
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Validate ELF class (must be 64-bit)
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}

	// Validate machine type and byte order
	if f.Machine != elf.EM_MMIX {
		return nil, fmt.Errorf("not an MMIX ELF file (machine type: %v)", f.Machine)
	}
	if f.Data != elf.ELFDATA2MSB {
		return nil, fmt.Errorf("not a big-endian ELF file")
	}

	prog := &Program{
		EntryPoint: f.Entry,
		Symbols:    NewSymbolTable(nil),
	}

	// Load all PT_LOAD segments
	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		// Read segment data
		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		// Convert ELF flags to our segment flags
		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	syms, err := f.Symbols()
	switch {
	case errors.Is(err, elf.ErrNoSymbols):
	case err != nil:
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	default:
		prog.Symbols = symbolsFromELF(syms)
	}

	return prog, nil
}

func symbolsFromELF(syms []elf.Symbol) *SymbolTable {
	var out []Symbol
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_NOTYPE:
			out = append(out, Symbol{Name: s.Name, Addr: s.Value})
		}
	}
	return NewSymbolTable(out)
}
