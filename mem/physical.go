package mem

import "encoding/binary"

// FrameSize is the granularity in which physical memory is allocated.
const FrameSize = 8192

// DefaultSize is the physical memory size used when none is configured.
const DefaultSize = 64 * 1024 * 1024

// Physical is a bounded, byte-addressable physical memory. Frames are
// allocated on first write; unwritten memory reads as zero. All multi-byte
// accessors are big-endian.
type Physical struct {
	size   uint64
	frames map[uint64][]byte
}

// NewPhysical creates a physical memory of the given size in bytes.
func NewPhysical(size uint64) *Physical {
	if size == 0 {
		size = DefaultSize
	}
	return &Physical{
		size:   size,
		frames: make(map[uint64][]byte),
	}
}

// Size returns the number of addressable bytes.
func (p *Physical) Size() uint64 {
	return p.size
}

// FramesInUse returns the number of allocated frames.
func (p *Physical) FramesInUse() int {
	return len(p.frames)
}

// Clear discards all contents.
func (p *Physical) Clear() {
	p.frames = make(map[uint64][]byte)
}

func (p *Physical) check(addr uint64, n int, kind AccessKind) error {
	end := addr + uint64(n)
	if end < addr || end > p.size {
		return &Fault{Addr: addr, Kind: kind}
	}
	return nil
}

func (p *Physical) frame(addr uint64, alloc bool) []byte {
	base := addr &^ (FrameSize - 1)
	f, ok := p.frames[base]
	if !ok && alloc {
		f = make([]byte, FrameSize)
		p.frames[base] = f
	}
	return f
}

// ReadBytes fills buf with the bytes starting at addr.
func (p *Physical) ReadBytes(addr uint64, buf []byte) error {
	if err := p.check(addr, len(buf), Read); err != nil {
		return err
	}
	for done := 0; done < len(buf); {
		a := addr + uint64(done)
		off := int(a & (FrameSize - 1))
		n := min(FrameSize-off, len(buf)-done)
		if f := p.frame(a, false); f != nil {
			copy(buf[done:done+n], f[off:off+n])
		} else {
			clear(buf[done : done+n])
		}
		done += n
	}
	return nil
}

// WriteBytes stores data starting at addr.
func (p *Physical) WriteBytes(addr uint64, data []byte) error {
	if err := p.check(addr, len(data), Write); err != nil {
		return err
	}
	for done := 0; done < len(data); {
		a := addr + uint64(done)
		off := int(a & (FrameSize - 1))
		n := copy(p.frame(a, true)[off:], data[done:])
		done += n
	}
	return nil
}

// Read returns the size-byte big-endian value at addr. Size is 1, 2, 4
// or 8.
func (p *Physical) Read(addr uint64, size int) (uint64, error) {
	var buf [8]byte
	if err := p.ReadBytes(addr, buf[:size]); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(buf[:])), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(buf[:])), nil
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Write stores the low size bytes of value at addr, big-endian.
func (p *Physical) Write(addr uint64, size int, value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return p.WriteBytes(addr, buf[8-size:])
}

// Read8 reads a byte.
func (p *Physical) Read8(addr uint64) (uint8, error) {
	v, err := p.Read(addr, 1)
	return uint8(v), err
}

// Read32 reads a tetra.
func (p *Physical) Read32(addr uint64) (uint32, error) {
	v, err := p.Read(addr, 4)
	return uint32(v), err
}

// Read64 reads an octa.
func (p *Physical) Read64(addr uint64) (uint64, error) {
	return p.Read(addr, 8)
}

// Write8 writes a byte.
func (p *Physical) Write8(addr uint64, value uint8) error {
	return p.Write(addr, 1, uint64(value))
}

// Write32 writes a tetra.
func (p *Physical) Write32(addr uint64, value uint32) error {
	return p.Write(addr, 4, uint64(value))
}

// Write64 writes an octa.
func (p *Physical) Write64(addr uint64, value uint64) error {
	return p.Write(addr, 8, value)
}
