package emu

// Frame is one level of the call stack.
type Frame struct {
	// Index is 0 for the innermost frame.
	Index int
	// Addr is the PC for frame 0 and the return address otherwise.
	Addr uint64
	// Site is the address of the call that created the frame; zero for
	// frame 0.
	Site uint64
	// Target is the subroutine entry the call jumped to.
	Target uint64
}

// Frames returns the call stack, innermost first. Frame 0 is the current
// PC; frame i is the return address of the i-th innermost call. Before
// the first instruction executes the stack is empty.
func (e *Emulator) Frames() []Frame {
	var frames []Frame
	e.WalkFrames(func(f Frame) bool {
		frames = append(frames, f)
		return true
	})
	return frames
}

// WalkFrames calls fn for each frame, innermost first, until fn returns
// false.
func (e *Emulator) WalkFrames(fn func(Frame) bool) {
	if !e.started {
		return
	}

	r := e.regFile
	top := Frame{Addr: r.PC}
	if n := len(r.frames); n > 0 {
		top.Target = r.frames[n-1].target
	}
	if !fn(top) {
		return
	}

	for i := len(r.frames) - 1; i >= 0; i-- {
		f := r.frames[i]
		outer := Frame{
			Index: len(r.frames) - i,
			Addr:  f.ret,
			Site:  f.site,
		}
		if i > 0 {
			outer.Target = r.frames[i-1].target
		}
		if !fn(outer) {
			return
		}
	}
}
