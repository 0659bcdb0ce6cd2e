package machine

// MaxFrames bounds the call-frame stack (recursion depth).
const MaxFrames = 64

// StackSize bounds the VM's value stack.
const StackSize = MaxFrames * 256

// CallFrame is one activation record: the closure being executed, its
// instruction pointer, and the base slot into the VM's value stack where
// its locals begin.
type CallFrame struct {
	Closure *ObjClosure
	IP      int
	Base    int
}

func (f *CallFrame) chunk() *Chunk { return f.Closure.Function.Chunk }

func (f *CallFrame) readByte() byte {
	b := f.chunk().Code[f.IP]
	f.IP++
	return b
}

func (f *CallFrame) readUint16() int {
	v := f.chunk().ReadUint16(f.IP)
	f.IP += 2
	return v
}

func (f *CallFrame) readConstant() Value {
	return f.chunk().Constants[f.readByte()]
}

func (f *CallFrame) line() int {
	if f.IP == 0 {
		return f.chunk().Lines[0]
	}
	return f.chunk().Lines[f.IP-1]
}
