package machine

import (
	"fmt"
	"strings"
)

// ObjType discriminates the heap object variants.
type ObjType uint8

const (
	ObjStringType ObjType = iota
	ObjListType
	ObjFunctionType
	ObjClosureType
	ObjUpvalueType
	ObjClassType
	ObjInstanceType
	ObjBoundMethodType
	ObjNativeType
	ObjModuleType
)

func (t ObjType) String() string {
	switch t {
	case ObjStringType:
		return "string"
	case ObjListType:
		return "list"
	case ObjFunctionType:
		return "function"
	case ObjClosureType:
		return "closure"
	case ObjUpvalueType:
		return "upvalue"
	case ObjClassType:
		return "class"
	case ObjInstanceType:
		return "instance"
	case ObjBoundMethodType:
		return "bound method"
	case ObjNativeType:
		return "native"
	case ObjModuleType:
		return "module"
	default:
		return "unknown"
	}
}

// Header is the common header embedded by every heap object: its type tag,
// the GC mark bit, and the intrusive next-pointer threading all allocated
// objects into the VM's single object list.
type Header struct {
	Type   ObjType
	Marked bool
	Next   Obj
}

// Obj is implemented by every heap object variant.
type Obj interface {
	header() *Header
	String() string
}

func objType(o Obj) ObjType { return o.header().Type }

// ObjString is an immutable, interned byte sequence.
type ObjString struct {
	Header
	Value string
	Hash  uint32
}

func newObjString(s string, hash uint32) *ObjString {
	return &ObjString{Header: Header{Type: ObjStringType}, Value: s, Hash: hash}
}

func (s *ObjString) header() *Header { return &s.Header }
func (s *ObjString) String() string  { return s.Value }

// ObjList is a dynamic array of Values. Negative indices wrap from the end.
type ObjList struct {
	Header
	Items []Value
}

func newObjList(items []Value) *ObjList {
	return &ObjList{Header: Header{Type: ObjListType}, Items: items}
}

func (l *ObjList) header() *Header { return &l.Header }

func (l *ObjList) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range l.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.Print())
	}
	sb.WriteByte(']')
	return sb.String()
}

// resolveIndex converts a possibly-negative index into an absolute one. ok
// is false if the resulting index is still out of [0, len).
func (l *ObjList) resolveIndex(i int) (int, bool) {
	if i < 0 {
		i += len(l.Items)
	}
	return i, i >= 0 && i < len(l.Items)
}

// ObjFunction is a compiled function body: its arity, declared upvalue
// count, owning module, optional name, and bytecode chunk.
type ObjFunction struct {
	Header
	Name          *ObjString // nil for the top-level script
	Arity         int
	UpvalueCount  int
	Chunk         *Chunk
	Module        *ObjModule
}

func newObjFunction(module *ObjModule) *ObjFunction {
	return &ObjFunction{
		Header: Header{Type: ObjFunctionType},
		Chunk:  NewChunk(),
		Module: module,
	}
}

func (f *ObjFunction) header() *Header { return &f.Header }

func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Value)
}

// ObjUpvalue is the indirection a closure uses to read/write a captured
// variable. It is "open" while Location points into the VM's value stack,
// and "closed" once the value has been copied into Closed and Location
// redirected to point at it.
type ObjUpvalue struct {
	Header
	Location *Value
	Closed   Value
	// StackIndex is the slot this upvalue observes while open; used only
	// to maintain the descending-sorted open-upvalue list.
	StackIndex int
	NextOpen   *ObjUpvalue
}

func newObjUpvalue(slot *Value, idx int) *ObjUpvalue {
	return &ObjUpvalue{Header: Header{Type: ObjUpvalueType}, Location: slot, StackIndex: idx}
}

func (u *ObjUpvalue) header() *Header { return &u.Header }
func (u *ObjUpvalue) String() string  { return "<upvalue>" }

func (u *ObjUpvalue) close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// ObjClosure pairs a Function with the array of upvalues it captured at
// creation time.
type ObjClosure struct {
	Header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func newObjClosure(fn *ObjFunction) *ObjClosure {
	return &ObjClosure{
		Header:   Header{Type: ObjClosureType},
		Function: fn,
		Upvalues: make([]*ObjUpvalue, fn.UpvalueCount),
	}
}

func (c *ObjClosure) header() *Header { return &c.Header }
func (c *ObjClosure) String() string  { return c.Function.String() }

// ObjClass is a single-inheritance class: a name and a method table mapping
// interned method names to their Closure.
type ObjClass struct {
	Header
	Name    *ObjString
	Methods *Table
}

func newObjClass(name *ObjString) *ObjClass {
	return &ObjClass{Header: Header{Type: ObjClassType}, Name: name, Methods: NewTable()}
}

func (c *ObjClass) header() *Header { return &c.Header }
func (c *ObjClass) String() string  { return c.Name.Value }

// ObjInstance is an instance of a Class, with its own field table.
type ObjInstance struct {
	Header
	Class  *ObjClass
	Fields *Table
}

func newObjInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Header: Header{Type: ObjInstanceType}, Class: class, Fields: NewTable()}
}

func (i *ObjInstance) header() *Header { return &i.Header }
func (i *ObjInstance) String() string  { return fmt.Sprintf("%s instance", i.Class.Name.Value) }

// ObjBoundMethod pairs a receiver Value with the method Closure it is bound
// to; calling it installs the receiver as slot 0 of the new frame.
type ObjBoundMethod struct {
	Header
	Receiver Value
	Method   *ObjClosure
}

func newObjBoundMethod(receiver Value, method *ObjClosure) *ObjBoundMethod {
	return &ObjBoundMethod{Header: Header{Type: ObjBoundMethodType}, Receiver: receiver, Method: method}
}

func (b *ObjBoundMethod) header() *Header { return &b.Header }
func (b *ObjBoundMethod) String() string  { return b.Method.String() }

// NativeFn is the signature of a native (Go-implemented) function
// reachable from thistle code.
type NativeFn func(vm *VM, args []Value) Value

// ObjNative wraps a Go function so it can be called like any other
// Callable value.
type ObjNative struct {
	Header
	Name string
	Fn   NativeFn
}

func newObjNative(name string, fn NativeFn) *ObjNative {
	return &ObjNative{Header: Header{Type: ObjNativeType}, Name: name, Fn: fn}
}

func (n *ObjNative) header() *Header { return &n.Header }
func (n *ObjNative) String() string  { return fmt.Sprintf("<native %s>", n.Name) }

// ObjModule is an imported module: its name, resolved directory (for
// relative imports from within it), and the table of its top-level
// bindings.
type ObjModule struct {
	Header
	Name   *ObjString
	Dir    string
	Values *Table
}

func newObjModule(name *ObjString, dir string) *ObjModule {
	return &ObjModule{Header: Header{Type: ObjModuleType}, Name: name, Dir: dir, Values: NewTable()}
}

func (m *ObjModule) header() *Header { return &m.Header }
func (m *ObjModule) String() string  { return m.Name.Value }
