package machine

import (
	"fmt"
	"strconv"
)

// kind discriminates the cases a Value can hold. The spec's NaN-boxing
// encoding is a representation choice; this implementation uses a tagged
// struct instead (see DESIGN.md) while preserving the same observable
// semantics: number equality is IEEE ==, heap pointer equality is
// identity (except lists, compared element-wise), and BAD is a
// distinguished sentinel a native returns to signal "error already
// reported, do not push a result".
type kind uint8

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindObj
	kindBad
)

// Value is the single representation for every value the machine
// manipulates: null, true/false, a float64 number, or a heap pointer.
type Value struct {
	k   kind
	num float64
	obj Obj
}

// Null is the singleton null value.
var Null = Value{k: kindNull}

// Bad is the sentinel a native function returns to signal that it already
// reported a runtime error and the VM should abort rather than push a
// result.
var Bad = Value{k: kindBad}

// Bool returns the Value for b.
func Bool(b bool) Value {
	if b {
		return Value{k: kindBool, num: 1}
	}
	return Value{k: kindBool, num: 0}
}

// Number returns the Value wrapping the float64 n.
func Number(n float64) Value { return Value{k: kindNumber, num: n} }

// FromObj returns the Value wrapping the heap object o.
func FromObj(o Obj) Value { return Value{k: kindObj, obj: o} }

func (v Value) IsNull() bool   { return v.k == kindNull }
func (v Value) IsBool() bool   { return v.k == kindBool }
func (v Value) IsNumber() bool { return v.k == kindNumber }
func (v Value) IsObj() bool    { return v.k == kindObj }
func (v Value) IsBad() bool    { return v.k == kindBad }

func (v Value) AsBool() bool     { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() Obj        { return v.obj }

func (v Value) objType() (ObjType, bool) {
	if v.k != kindObj {
		return 0, false
	}
	return objType(v.obj), true
}

func (v Value) IsString() bool { t, ok := v.objType(); return ok && t == ObjStringType }
func (v Value) IsList() bool   { t, ok := v.objType(); return ok && t == ObjListType }
func (v Value) IsClass() bool  { t, ok := v.objType(); return ok && t == ObjClassType }

func (v Value) AsString() *ObjString     { return v.obj.(*ObjString) }
func (v Value) AsList() *ObjList         { return v.obj.(*ObjList) }
func (v Value) AsFunction() *ObjFunction { return v.obj.(*ObjFunction) }
func (v Value) AsClosure() *ObjClosure   { return v.obj.(*ObjClosure) }
func (v Value) AsClass() *ObjClass       { return v.obj.(*ObjClass) }
func (v Value) AsInstance() *ObjInstance { return v.obj.(*ObjInstance) }
func (v Value) AsBoundMethod() *ObjBoundMethod {
	return v.obj.(*ObjBoundMethod)
}
func (v Value) AsNative() *ObjNative { return v.obj.(*ObjNative) }
func (v Value) AsModule() *ObjModule { return v.obj.(*ObjModule) }

// IsCallable reports whether the value may appear as the callee of a call
// expression.
func (v Value) IsCallable() bool {
	t, ok := v.objType()
	if !ok {
		return false
	}
	switch t {
	case ObjClosureType, ObjClassType, ObjBoundMethodType, ObjNativeType:
		return true
	default:
		return false
	}
}

// Truthy implements the language's notion of falsiness: null and false are
// falsey, every other value (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.k {
	case kindNull:
		return false
	case kindBool:
		return v.num != 0
	default:
		return true
	}
}

// Equal implements the machine's equality operator. Numbers compare via
// IEEE ==, so NaN != NaN. Heap pointers compare by identity, except lists
// which compare element-wise. Values of differing kinds are never equal,
// except that numbers are only ever compared to numbers by kind already.
func Equal(a, b Value) bool {
	if a.k != b.k {
		return false
	}
	switch a.k {
	case kindNull:
		return true
	case kindBool:
		return a.num == b.num
	case kindNumber:
		return a.num == b.num
	case kindObj:
		at, _ := a.objType()
		bt, _ := b.objType()
		if at != bt {
			return false
		}
		if at == ObjListType {
			la, lb := a.AsList(), b.AsList()
			if len(la.Items) != len(lb.Items) {
				return false
			}
			for i := range la.Items {
				if !Equal(la.Items[i], lb.Items[i]) {
					return false
				}
			}
			return true
		}
		return a.obj == b.obj
	default:
		return false
	}
}

// Print renders v the way `echo` does: numbers via %g, booleans as
// true/false, null as null, strings as their characters, lists
// recursively, classes/modules as their name, instances as "Name
// instance", and closures/functions as "<fn NAME>" or "<script>".
func (v Value) Print() string {
	switch v.k {
	case kindNull:
		return "null"
	case kindBool:
		return strconv.FormatBool(v.AsBool())
	case kindNumber:
		return formatNumber(v.num)
	case kindObj:
		if s, ok := v.obj.(*ObjString); ok {
			return s.Value
		}
		return v.obj.String()
	case kindBad:
		return "<bad>"
	default:
		return fmt.Sprintf("<unknown value %d>", v.k)
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// Type returns a short string naming v's runtime type, for error messages.
func (v Value) Type() string {
	switch v.k {
	case kindNull:
		return "null"
	case kindBool:
		return "bool"
	case kindNumber:
		return "number"
	case kindObj:
		t, _ := v.objType()
		return t.String()
	case kindBad:
		return "bad"
	default:
		return "unknown"
	}
}
