package compiler

import (
	"fmt"
	"io"

	"github.com/thistlelang/thistle/lang/machine"
)

// Disassemble walks fn's chunk (and every nested function reachable via its
// constant pool) printing one `offset  line  OP_NAME  operand` row per
// instruction to w.
func Disassemble(w io.Writer, fn *machine.ObjFunction) {
	disasmFunction(w, fn, map[*machine.ObjFunction]bool{})
}

func disasmFunction(w io.Writer, fn *machine.ObjFunction, seen map[*machine.ObjFunction]bool) {
	if seen[fn] {
		return
	}
	seen[fn] = true

	name := "<script>"
	if fn.Name != nil {
		name = fn.Name.Value
	}
	fmt.Fprintf(w, "== %s ==\n", name)

	chunk := fn.Chunk
	nested := make([]*machine.ObjFunction, 0)
	for offset := 0; offset < len(chunk.Code); {
		var childFn *machine.ObjFunction
		offset, childFn = disasmInstruction(w, chunk, offset)
		if childFn != nil {
			nested = append(nested, childFn)
		}
	}
	for _, child := range nested {
		fmt.Fprintln(w)
		disasmFunction(w, child, seen)
	}
}

// disasmInstruction prints the single instruction at offset and returns the
// offset just past it. When the instruction is OpClosure it also returns the
// nested ObjFunction it references, so the caller can recurse into it after
// finishing the current chunk.
func disasmInstruction(w io.Writer, chunk *machine.Chunk, offset int) (int, *machine.ObjFunction) {
	op := machine.OpCode(chunk.Code[offset])
	line := chunk.Lines[offset]
	lineCol := fmt.Sprintf("%4d", line)
	if offset > 0 && chunk.Lines[offset-1] == line {
		lineCol = "   |"
	}

	if op == machine.OpClosure {
		return disasmClosure(w, chunk, offset, lineCol)
	}

	length := chunk.InstructionLen(offset)
	switch length {
	case 1:
		fmt.Fprintf(w, "%04d %s %-18s\n", offset, lineCol, op)
	case 2:
		arg := chunk.Code[offset+1]
		fmt.Fprintf(w, "%04d %s %-18s %4d%s\n", offset, lineCol, op, arg, constantSuffix(chunk, op, arg))
	case 3:
		arg := chunk.ReadUint16(offset + 1)
		if isJumpOp(op) {
			target := offset + 3 + arg
			if op == machine.OpLoop {
				target = offset + 3 - arg
			}
			fmt.Fprintf(w, "%04d %s %-18s %4d -> %d\n", offset, lineCol, op, arg, target)
		} else {
			fmt.Fprintf(w, "%04d %s %-18s %4d %4d\n", offset, lineCol, op, chunk.Code[offset+1], chunk.Code[offset+2])
		}
	default:
		fmt.Fprintf(w, "%04d %s %-18s <%d bytes>\n", offset, lineCol, op, length)
	}
	return offset + length, nil
}

func disasmClosure(w io.Writer, chunk *machine.Chunk, offset int, lineCol string) (int, *machine.ObjFunction) {
	constIdx := chunk.Code[offset+1]
	fn := chunk.Constants[constIdx].AsFunction()
	fmt.Fprintf(w, "%04d %s %-18s %4d %s\n", offset, lineCol, machine.OpClosure, constIdx, fn)

	next := offset + 2
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[next]
		idx := chunk.Code[next+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, idx)
		next += 2
	}
	return next, fn
}

func constantSuffix(chunk *machine.Chunk, op machine.OpCode, arg byte) string {
	switch op {
	case machine.OpConstant, machine.OpGetModule, machine.OpDefineModule, machine.OpSetModule,
		machine.OpGetGlobal, machine.OpGetProperty, machine.OpSetProperty, machine.OpGetPropertyNoPop,
		machine.OpGetSuper, machine.OpClass, machine.OpMethod:
		if int(arg) < len(chunk.Constants) {
			return fmt.Sprintf(" '%s'", chunk.Constants[arg].Print())
		}
	}
	return ""
}

func isJumpOp(op machine.OpCode) bool {
	switch op {
	case machine.OpJump, machine.OpJumpIfFalse, machine.OpLoop:
		return true
	default:
		return false
	}
}
