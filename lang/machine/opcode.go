package machine

import "fmt"

// OpCode is a single bytecode instruction. Opcodes that take an operand
// are followed by a fixed number of argument bytes per opArgBytes.
type OpCode uint8

//nolint:revive
const (
	OpConstant OpCode = iota
	OpNull
	OpTrue
	OpFalse
	OpPop

	OpGetLocal
	OpSetLocal
	OpGetModule
	OpDefineModule
	OpSetModule
	OpGetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpGetProperty
	OpSetProperty
	OpGetPropertyNoPop
	OpGetSuper

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpPower
	OpNegate
	OpIncrement
	OpDecrement

	OpEqual
	OpGreater
	OpLess
	OpNot

	OpJump
	OpJumpIfFalse
	OpLoop

	OpCall
	OpInvoke
	OpSuperInvoke
	OpReturn

	OpClosure
	OpCloseUpvalue

	OpClass
	OpInherit
	OpMethod
	OpEndClass

	OpMakeList
	OpSubscriptIdx
	OpSubscriptIdxNoPop
	OpSubscriptAssign

	OpModule
	OpModuleBuiltin
	OpModuleVar

	OpPrint

	opCodeCount
)

var opNames = [...]string{
	OpConstant:          "CONSTANT",
	OpNull:               "NULL",
	OpTrue:               "TRUE",
	OpFalse:              "FALSE",
	OpPop:                "POP",
	OpGetLocal:           "GET_LOCAL",
	OpSetLocal:           "SET_LOCAL",
	OpGetModule:          "GET_MODULE",
	OpDefineModule:       "DEFINE_MODULE",
	OpSetModule:          "SET_MODULE",
	OpGetGlobal:          "GET_GLOBAL",
	OpGetUpvalue:         "GET_UPVALUE",
	OpSetUpvalue:         "SET_UPVALUE",
	OpGetProperty:        "GET_PROPERTY",
	OpSetProperty:        "SET_PROPERTY",
	OpGetPropertyNoPop:   "GET_PROPERTY_NOPOP",
	OpGetSuper:           "GET_SUPER",
	OpAdd:                "ADD",
	OpSubtract:           "SUBTRACT",
	OpMultiply:           "MULTIPLY",
	OpDivide:             "DIVIDE",
	OpMod:                "MOD",
	OpPower:              "POWER",
	OpNegate:             "NEGATE",
	OpIncrement:          "INCREMENT",
	OpDecrement:          "DECREMENT",
	OpEqual:              "EQUAL",
	OpGreater:            "GREATER",
	OpLess:               "LESS",
	OpNot:                "NOT",
	OpJump:               "JUMP",
	OpJumpIfFalse:        "JUMP_IF_FALSE",
	OpLoop:               "LOOP",
	OpCall:               "CALL",
	OpInvoke:             "INVOKE",
	OpSuperInvoke:        "SUPER_INVOKE",
	OpReturn:             "RETURN",
	OpClosure:            "CLOSURE",
	OpCloseUpvalue:       "CLOSE_UPVALUE",
	OpClass:              "CLASS",
	OpInherit:            "INHERIT",
	OpMethod:             "METHOD",
	OpEndClass:           "END_CLASS",
	OpMakeList:           "MAKE_LIST",
	OpSubscriptIdx:       "SUBSCRIPT_IDX",
	OpSubscriptIdxNoPop:  "SUBSCRIPT_IDX_NOPOP",
	OpSubscriptAssign:    "SUBSCRIPT_ASSIGN",
	OpModule:             "MODULE",
	OpModuleBuiltin:      "MODULE_BUILTIN",
	OpModuleVar:          "MODULE_VAR",
	OpPrint:              "PRINT",
}

func (op OpCode) String() string {
	if op < opCodeCount {
		if s := opNames[op]; s != "" {
			return s
		}
	}
	return fmt.Sprintf("OP(%d)", op)
}

// opArgBytes gives, for each opcode that carries an immediate operand, the
// number of bytes that operand occupies. Opcodes absent from this map take
// no operand. OpClosure's entry is only its constant-index byte: its full
// size depends on the function's upvalue count and is computed by
// Chunk.InstructionLen.
var opArgBytes = map[OpCode]int{
	OpConstant:         1,
	OpGetLocal:         1,
	OpSetLocal:         1,
	OpGetModule:        1,
	OpDefineModule:     1,
	OpSetModule:        1,
	OpGetGlobal:        1,
	OpGetUpvalue:       1,
	OpSetUpvalue:       1,
	OpGetProperty:      1,
	OpSetProperty:      1,
	OpGetPropertyNoPop: 1,
	OpGetSuper:         1,
	OpJump:             2,
	OpJumpIfFalse:      2,
	OpLoop:             2,
	OpCall:             1,
	OpInvoke:           2, // name constant index (1 byte) + argc (1 byte)
	OpSuperInvoke:      2,
	OpClosure:          1, // base size; upvalue pairs are additional, see InstructionLen
	OpClass:            1,
	OpMethod:           1,
	OpMakeList:         1,
	OpModule:           1,
	OpModuleBuiltin:    2, // registry index (1 byte) + name constant (1 byte)
}
