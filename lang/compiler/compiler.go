// Package compiler implements the single-pass Pratt-precedence compiler:
// it parses thistle source and emits machine.Chunk bytecode directly, with
// no intermediate syntax tree.
package compiler

import (
	"strconv"

	"github.com/thistlelang/thistle/lang/machine"
	"github.com/thistlelang/thistle/lang/scanner"
	"github.com/thistlelang/thistle/lang/token"
)

const maxLocals = 256
const maxConstants = 256

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precPower
	precUnary
	precCall
	precPrimary
)

type parseFn func(p *parser, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

type local struct {
	name       string
	depth      int // -1 while being initialized
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

type funcType int

const (
	typeScript funcType = iota
	typeFunction
	typeMethod
	typeInitializer
)

// funcState is the per-function compiler: one is pushed for the script
// itself and one more for every nested function/method literal, chained
// via enclosing so upvalue resolution can walk outward.
type funcState struct {
	enclosing *funcState
	fn        *machine.ObjFunction
	fnType    funcType

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

type classState struct {
	enclosing     *classState
	hasSuperclass bool
}

type loopState struct {
	enclosing  *loopState
	start      int
	breakJumps []int
	localBase  int // len(fs.locals) at loop entry; break/continue pop every local above it
}

// parser holds all single-pass compiler state: the token stream, the
// current function/class/loop nesting, and accumulated errors.
type parser struct {
	vm     *machine.VM
	module *machine.ObjModule
	src    []byte

	sc       scanner.Scanner
	scanErrs scanner.ErrorList
	errs     ErrorList

	prev, cur token.Token

	hadError  bool
	panicMode bool

	fs *funcState
	cs *classState
	ls *loopState

	// compoundOp is scratch state set by matchCompoundOp for its caller to
	// read back alongside the bool it returns.
	compoundOp machine.OpCode

	// moduleConsts tracks const-declared module-scope names so assignment
	// to them is rejected at compile time.
	moduleConsts map[string]bool

	// moduleNames tracks every var/const/fun/class name declared at module
	// scope so namedVariable can prefer a module binding over a native of
	// the same name, even before the declaring statement has executed.
	moduleNames map[string]bool
}

var rules [int(token.Kind(255))]parseRule

func init() {
	r := func(k token.Kind, prefix, infix parseFn, prec precedence) {
		rules[k] = parseRule{prefix: prefix, infix: infix, prec: prec}
	}
	r(token.LPAREN, (*parser).grouping, (*parser).call, precCall)
	r(token.LBRACK, (*parser).listLiteral, (*parser).subscript, precCall)
	r(token.DOT, nil, (*parser).dot, precCall)
	r(token.MINUS, (*parser).unary, (*parser).binary, precTerm)
	r(token.PLUS, nil, (*parser).binary, precTerm)
	r(token.SLASH, nil, (*parser).binary, precFactor)
	r(token.STAR, nil, (*parser).binary, precFactor)
	r(token.PERCENT, nil, (*parser).binary, precFactor)
	r(token.STAR_STAR, nil, (*parser).power, precPower)
	r(token.BANG, (*parser).unary, nil, precUnary)
	r(token.BANG_EQ, nil, (*parser).binary, precEquality)
	r(token.EQ_EQ, nil, (*parser).binary, precEquality)
	r(token.GT, nil, (*parser).binary, precComparison)
	r(token.GT_EQ, nil, (*parser).binary, precComparison)
	r(token.LT, nil, (*parser).binary, precComparison)
	r(token.LT_EQ, nil, (*parser).binary, precComparison)
	r(token.IDENT, (*parser).variable, nil, precNone)
	r(token.STRING, (*parser).stringLiteral, nil, precNone)
	r(token.RAW_STRING, (*parser).rawStringLiteral, nil, precNone)
	r(token.NUMBER, (*parser).number, nil, precNone)
	r(token.AND, nil, (*parser).and, precAnd)
	r(token.OR, nil, (*parser).or, precOr)
	r(token.FALSE, (*parser).literal, nil, precNone)
	r(token.TRUE, (*parser).literal, nil, precNone)
	r(token.NULL, (*parser).literal, nil, precNone)
	r(token.THIS, (*parser).this, nil, precNone)
	r(token.SUPER, (*parser).super, nil, precNone)
}

func ruleFor(k token.Kind) *parseRule {
	if int(k) < len(rules) {
		return &rules[k]
	}
	return &parseRule{}
}

// Compile parses source as module's top-level code and returns the
// resulting ObjFunction, or a non-nil ErrorList error if compilation
// failed. module must already be registered with the owning VM (by the
// caller) so that cyclic file imports can observe it mid-compile.
func Compile(vm *machine.VM, module *machine.ObjModule, source []byte) (*machine.ObjFunction, error) {
	p := &parser{
		vm:           vm,
		module:       module,
		src:          source,
		moduleConsts: make(map[string]bool),
		moduleNames:  make(map[string]bool),
	}
	p.sc.Init(module.Name.Value, source, &p.scanErrs)

	fn := vm.NewFunction(module)
	vm.PushCompilerRoot(fn)
	defer vm.PopCompilerRoot()

	p.fs = &funcState{fn: fn, fnType: typeScript}
	// slot 0 of the script's own frame is reserved the same way a method's
	// implicit receiver slot is, for call-convention uniformity.
	p.fs.locals = append(p.fs.locals, local{name: "", depth: 0})

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	p.emitReturn()

	if len(p.scanErrs) > 0 {
		for _, e := range p.scanErrs {
			p.errs.add(e.Module, e.Line, "%s", e.Msg)
		}
	}
	if p.hadError || len(p.errs) > 0 {
		return nil, p.errs
	}
	return fn, nil
}

// --- token stream -----------------------------------------------------

func (p *parser) advance() {
	p.prev = p.cur
	for {
		p.cur = p.sc.Scan()
		if p.cur.Kind != token.ERROR {
			break
		}
		p.errorAtCurrent(p.cur.Lexeme(p.src))
	}
}

func (p *parser) check(k token.Kind) bool { return p.cur.Kind == k }

func (p *parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *parser) consume(k token.Kind, msg string) {
	if p.cur.Kind == k {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *parser) consumeSemi(after string) {
	p.consume(token.SEMI, "expect ';' "+after)
}

func (p *parser) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	p.errs.add(p.module.Name.Value, tok.Line, "%s", msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.cur, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.prev, msg) }

// synchronize recovers from a parse error by skipping to the next
// statement boundary, so one mistake reports as one error.
func (p *parser) synchronize() {
	p.panicMode = false
	for p.cur.Kind != token.EOF {
		if p.prev.Kind == token.SEMI {
			return
		}
		switch p.cur.Kind {
		case token.CLASS, token.FUN, token.VAR, token.LOCAL, token.CONST,
			token.FOR, token.IF, token.WHILE, token.RETURN, token.ECHO:
			return
		}
		p.advance()
	}
}

// --- bytecode emission -------------------------------------------------

func (p *parser) chunk() *machine.Chunk { return p.fs.fn.Chunk }

func (p *parser) emitByte(b byte)             { p.chunk().Write(b, p.prev.Line) }
func (p *parser) emitOp(op machine.OpCode)    { p.chunk().WriteOp(op, p.prev.Line) }
func (p *parser) emitBytes(op machine.OpCode, b byte) {
	p.emitOp(op)
	p.emitByte(b)
}

func (p *parser) emitJump(op machine.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.chunk().Code) - 2
}

func (p *parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xffff {
		p.error("jump offset too large to encode")
		return
	}
	p.chunk().PatchJump(offset)
}

func (p *parser) emitLoop(start int) {
	if len(p.chunk().Code)-start+2 > 0xffff {
		p.error("loop body too large to encode")
	}
	p.chunk().EmitLoop(start, p.prev.Line)
}

func (p *parser) emitReturn() {
	if p.fs.fnType == typeInitializer {
		p.emitBytes(machine.OpGetLocal, 0)
	} else {
		p.emitOp(machine.OpNull)
	}
	p.emitOp(machine.OpReturn)
}

func (p *parser) makeConstant(v machine.Value) byte {
	if len(p.chunk().Constants) >= maxConstants {
		p.error("too many constants in one chunk")
		return 0
	}
	return byte(p.chunk().AddConstant(v))
}

func (p *parser) identifierConstant(name string) byte {
	return p.makeConstant(machine.FromObj(p.vm.NewString(name)))
}

// --- scope handling ------------------------------------------------------

func (p *parser) beginScope() { p.fs.scopeDepth++ }

func (p *parser) endScope() {
	p.fs.scopeDepth--
	for len(p.fs.locals) > 0 && p.fs.locals[len(p.fs.locals)-1].depth > p.fs.scopeDepth {
		last := p.fs.locals[len(p.fs.locals)-1]
		if last.isCaptured {
			p.emitOp(machine.OpCloseUpvalue)
		} else {
			p.emitOp(machine.OpPop)
		}
		p.fs.locals = p.fs.locals[:len(p.fs.locals)-1]
	}
}

func (p *parser) addLocal(name string) {
	if len(p.fs.locals) >= maxLocals {
		p.error("too many local variables in one function")
		return
	}
	p.fs.locals = append(p.fs.locals, local{name: name, depth: -1})
}

// declareLocal registers tok's lexeme as a new local in the current scope,
// rejecting a duplicate name already declared at this exact depth.
func (p *parser) declareLocal(tok token.Token) {
	name := tok.Lexeme(p.src)
	for i := len(p.fs.locals) - 1; i >= 0; i-- {
		l := p.fs.locals[i]
		if l.depth != -1 && l.depth < p.fs.scopeDepth {
			break
		}
		if l.name == name {
			p.error("a variable named " + strconv.Quote(name) + " already exists in this scope")
		}
	}
	p.addLocal(name)
}

func (p *parser) markLocalInitialized() {
	p.fs.locals[len(p.fs.locals)-1].depth = p.fs.scopeDepth
}

func resolveLocal(fs *funcState, name string) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i
		}
	}
	return -1
}

func addUpvalue(fs *funcState, index byte, isLocal bool) int {
	for i, u := range fs.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	fs.fn.UpvalueCount = len(fs.upvalues)
	return len(fs.upvalues) - 1
}

func resolveUpvalue(fs *funcState, name string) int {
	if fs.enclosing == nil {
		return -1
	}
	if slot := resolveLocal(fs.enclosing, name); slot != -1 {
		fs.enclosing.locals[slot].isCaptured = true
		return addUpvalue(fs, byte(slot), true)
	}
	if up := resolveUpvalue(fs.enclosing, name); up != -1 {
		return addUpvalue(fs, byte(up), false)
	}
	return -1
}

// --- declarations --------------------------------------------------------

func (p *parser) declaration() {
	switch {
	case p.match(token.VAR):
		p.varDeclaration(false)
	case p.match(token.CONST):
		p.varDeclaration(true)
	case p.match(token.LOCAL):
		p.localDeclaration()
	case p.match(token.FUN):
		p.funDeclaration()
	case p.match(token.CLASS):
		p.classDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

// varDeclaration always binds name into the enclosing module's value
// table, regardless of lexical nesting depth — `var`/`const` declare
// module-scope bindings on purpose, so a function can publish state
// visible to the whole file (and, once exported via `using`, to
// importers) even when declared inside a block.
func (p *parser) varDeclaration(isConst bool) {
	p.consume(token.IDENT, "expect variable name")
	nameTok := p.prev
	name := nameTok.Lexeme(p.src)
	idx := p.identifierConstant(name)

	if p.match(token.EQ) {
		p.expression()
	} else {
		p.emitOp(machine.OpNull)
	}
	p.consumeSemi("after variable declaration")

	if isConst {
		p.moduleConsts[name] = true
	}
	p.moduleNames[name] = true
	p.emitBytes(machine.OpDefineModule, idx)
}

// localDeclaration declares an ordinary block-scoped stack local,
// regardless of depth (so `local` at the outermost level of a function
// body still behaves like any other local, not a module binding).
func (p *parser) localDeclaration() {
	p.consume(token.IDENT, "expect variable name")
	nameTok := p.prev
	p.declareLocal(nameTok)

	if p.match(token.EQ) {
		p.expression()
	} else {
		p.emitOp(machine.OpNull)
	}
	p.consumeSemi("after variable declaration")
	p.markLocalInitialized()
}

func (p *parser) funDeclaration() {
	p.consume(token.IDENT, "expect function name")
	nameTok := p.prev
	name := nameTok.Lexeme(p.src)

	if p.fs.scopeDepth > 0 {
		p.declareLocal(nameTok)
		p.markLocalInitialized()
		p.function(typeFunction)
		return
	}
	idx := p.identifierConstant(name)
	p.moduleNames[name] = true
	p.function(typeFunction)
	p.emitBytes(machine.OpDefineModule, idx)
}

func (p *parser) function(fnType funcType) {
	enclosing := p.fs
	fn := p.vm.NewFunction(p.module)
	p.vm.PushCompilerRoot(fn)
	defer p.vm.PopCompilerRoot()

	// p.prev is the function or method name token just consumed by the caller
	fn.Name = p.vm.NewString(p.prev.Lexeme(p.src))

	p.fs = &funcState{enclosing: enclosing, fn: fn, fnType: fnType}
	if fnType != typeFunction {
		p.fs.locals = append(p.fs.locals, local{name: "this", depth: 0})
	} else {
		p.fs.locals = append(p.fs.locals, local{name: "", depth: 0})
	}

	p.beginScope()
	p.consume(token.LPAREN, "expect '(' after function name")
	if !p.check(token.RPAREN) {
		for {
			p.fs.fn.Arity++
			if p.fs.fn.Arity > 255 {
				p.errorAtCurrent("can't have more than 255 parameters")
			}
			p.consume(token.IDENT, "expect parameter name")
			p.declareLocal(p.prev)
			p.markLocalInitialized()
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expect ')' after parameters")
	p.consume(token.LBRACE, "expect '{' before function body")
	p.block()
	p.emitReturn()

	compiled := p.fs
	p.fs = enclosing

	closureIdx := p.makeConstant(machine.FromObj(compiled.fn))
	p.emitBytes(machine.OpClosure, closureIdx)
	for _, uv := range compiled.upvalues {
		if uv.isLocal {
			p.emitByte(1)
		} else {
			p.emitByte(0)
		}
		p.emitByte(uv.index)
	}
}

func (p *parser) classDeclaration() {
	p.consume(token.IDENT, "expect class name")
	nameTok := p.prev
	className := nameTok.Lexeme(p.src)
	nameIdx := p.identifierConstant(className)

	isLocal := p.fs.scopeDepth > 0
	if isLocal {
		p.declareLocal(nameTok)
	}

	p.emitBytes(machine.OpClass, nameIdx)

	if isLocal {
		p.markLocalInitialized()
	} else {
		p.moduleNames[className] = true
		p.emitBytes(machine.OpDefineModule, nameIdx)
	}

	p.cs = &classState{enclosing: p.cs}

	if p.match(token.EXTENDS) {
		p.consume(token.IDENT, "expect superclass name")
		superTok := p.prev
		if superTok.Lexeme(p.src) == className {
			p.error("a class cannot inherit from itself")
		}
		p.namedVariable(superTok, false)
		p.beginScope()
		p.addLocal("super")
		p.markLocalInitialized()
		p.namedVariable(nameTok, false)
		p.emitOp(machine.OpInherit)
		p.cs.hasSuperclass = true
	}

	p.namedVariable(nameTok, false)
	p.consume(token.LBRACE, "expect '{' before class body")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RBRACE, "expect '}' after class body")
	p.emitOp(machine.OpEndClass)

	if p.cs.hasSuperclass {
		p.endScope()
	}
	p.cs = p.cs.enclosing
}

func (p *parser) method() {
	p.consume(token.IDENT, "expect method name")
	name := p.prev.Lexeme(p.src)
	idx := p.identifierConstant(name)

	fnType := typeMethod
	if name == "init" {
		fnType = typeInitializer
	}
	p.function(fnType)
	p.emitBytes(machine.OpMethod, idx)
}

// --- statements ------------------------------------------------------

func (p *parser) statement() {
	switch {
	case p.match(token.ECHO):
		p.echoStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.BREAK):
		p.breakStatement()
	case p.match(token.CONTINUE):
		p.continueStatement()
	case p.match(token.USING):
		p.usingStatement()
	case p.match(token.MODULE):
		p.moduleStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expect '}' after block")
}

func (p *parser) echoStatement() {
	p.expression()
	p.consumeSemi("after value")
	p.emitOp(machine.OpPrint)
}

func (p *parser) expressionStatement() {
	p.expression()
	p.consumeSemi("after expression")
	p.emitOp(machine.OpPop)
}

func (p *parser) ifStatement() {
	p.consume(token.LPAREN, "expect '(' after 'if'")
	p.expression()
	p.consume(token.RPAREN, "expect ')' after condition")

	thenJump := p.emitJump(machine.OpJumpIfFalse)
	p.emitOp(machine.OpPop)
	p.statement()

	elseJump := p.emitJump(machine.OpJump)
	p.patchJump(thenJump)
	p.emitOp(machine.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.ls = &loopState{enclosing: p.ls, start: loopStart, localBase: len(p.fs.locals)}

	p.consume(token.LPAREN, "expect '(' after 'while'")
	p.expression()
	p.consume(token.RPAREN, "expect ')' after condition")

	exitJump := p.emitJump(machine.OpJumpIfFalse)
	p.emitOp(machine.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(machine.OpPop)
	p.endLoop()
}

// forStatement compiles the three-clause C-style for loop, desugaring to
// an initializer followed by a while-shaped condition/body/increment.
func (p *parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "expect '(' after 'for'")

	switch {
	case p.match(token.SEMI):
		// no initializer
	case p.match(token.LOCAL):
		p.localDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	p.ls = &loopState{enclosing: p.ls, start: loopStart, localBase: len(p.fs.locals)}

	exitJump := -1
	if !p.check(token.SEMI) {
		p.expression()
		p.consumeSemi("loop condition")
		exitJump = p.emitJump(machine.OpJumpIfFalse)
		p.emitOp(machine.OpPop)
	} else {
		p.advance() // consume the bare ';'
	}

	if !p.check(token.RPAREN) {
		bodyJump := p.emitJump(machine.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(machine.OpPop)
		p.consume(token.RPAREN, "expect ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.ls.start = loopStart
		p.patchJump(bodyJump)
	} else {
		p.advance() // consume ')'
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(machine.OpPop)
	}
	p.endLoop()
	p.endScope()
}

// endLoop patches every `break` emitted inside the loop to jump here, then
// pops the loop frame.
func (p *parser) endLoop() {
	for _, jump := range p.ls.breakJumps {
		p.patchJump(jump)
	}
	p.ls = p.ls.enclosing
}

func (p *parser) breakStatement() {
	if p.ls == nil {
		p.error("'break' outside a loop")
		p.consumeSemi("after 'break'")
		return
	}
	for i := len(p.fs.locals) - 1; i >= p.ls.localBase; i-- {
		if p.fs.locals[i].isCaptured {
			p.emitOp(machine.OpCloseUpvalue)
		} else {
			p.emitOp(machine.OpPop)
		}
	}
	jump := p.emitJump(machine.OpJump)
	p.ls.breakJumps = append(p.ls.breakJumps, jump)
	p.consumeSemi("after 'break'")
}

func (p *parser) continueStatement() {
	if p.ls == nil {
		p.error("'continue' outside a loop")
		p.consumeSemi("after 'continue'")
		return
	}
	for i := len(p.fs.locals) - 1; i >= p.ls.localBase; i-- {
		if p.fs.locals[i].isCaptured {
			p.emitOp(machine.OpCloseUpvalue)
		} else {
			p.emitOp(machine.OpPop)
		}
	}
	p.emitLoop(p.ls.start)
	p.consumeSemi("after 'continue'")
}

func (p *parser) returnStatement() {
	if p.fs.fnType == typeScript {
		p.error("can't return from top-level code")
	}
	if p.match(token.SEMI) {
		p.emitReturn()
		return
	}
	if p.fs.fnType == typeInitializer {
		p.error("can't return a value from an initializer")
	}
	p.expression()
	p.consumeSemi("after return value")
	p.emitOp(machine.OpReturn)
}

// usingStatement imports a registered standard-library module by name:
// `using io;` or `using io as stdio;`.
func (p *parser) usingStatement() {
	p.consume(token.IDENT, "expect module name")
	nameTok := p.prev
	name := nameTok.Lexeme(p.src)
	nameIdx := p.identifierConstant(name)

	p.emitBytes(machine.OpModuleBuiltin, 0)
	p.emitByte(nameIdx)

	bindName := name
	if p.match(token.AS) {
		p.consume(token.IDENT, "expect binding name after 'as'")
		bindName = p.prev.Lexeme(p.src)
	}
	p.consumeSemi("after 'using' statement")

	p.emitOp(machine.OpModuleVar)
	p.defineBinding(bindName, nameTok)
}

// moduleStatement imports a file-path module: `module "path/to/file" as
// name;`.
func (p *parser) moduleStatement() {
	p.consume(token.STRING, "expect module path string")
	pathTok := p.prev
	path := scanner.Decode(pathTok, p.src, false)
	pathIdx := p.makeConstant(machine.FromObj(p.vm.NewString(path)))

	p.emitBytes(machine.OpModule, pathIdx)

	bindName := path
	if p.match(token.AS) {
		p.consume(token.IDENT, "expect binding name after 'as'")
		bindName = p.prev.Lexeme(p.src)
	}
	p.consumeSemi("after module import")

	p.emitOp(machine.OpModuleVar)
	p.defineBinding(bindName, pathTok)
}

// defineBinding binds the value currently on top of the stack to name,
// following the same local-vs-module placement rule as other
// declarations.
func (p *parser) defineBinding(name string, at token.Token) {
	if p.fs.scopeDepth > 0 {
		for i := len(p.fs.locals) - 1; i >= 0; i-- {
			l := p.fs.locals[i]
			if l.depth != -1 && l.depth < p.fs.scopeDepth {
				break
			}
			if l.name == name {
				p.errorAt(at, "a variable named "+strconv.Quote(name)+" already exists in this scope")
			}
		}
		p.addLocal(name)
		p.markLocalInitialized()
		return
	}
	idx := p.identifierConstant(name)
	p.emitBytes(machine.OpDefineModule, idx)
}

// --- expressions -------------------------------------------------------

func (p *parser) expression() { p.parsePrecedence(precAssignment) }

func (p *parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := ruleFor(p.prev.Kind)
	if rule.prefix == nil {
		p.error("expect expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= ruleFor(p.cur.Kind).prec {
		p.advance()
		ruleFor(p.prev.Kind).infix(p, canAssign)
	}

	if canAssign && (p.match(token.EQ) || p.match(token.PLUS_EQ) || p.match(token.MINUS_EQ) ||
		p.match(token.STAR_EQ) || p.match(token.SLASH_EQ)) {
		p.error("invalid assignment target")
	}
}

func (p *parser) number(canAssign bool) {
	lex := p.prev.Lexeme(p.src)
	n, err := strconv.ParseFloat(lex, 64)
	if err != nil {
		p.error("invalid number literal")
		return
	}
	p.emitConstant(machine.Number(n))
}

func (p *parser) stringLiteral(canAssign bool) {
	decoded := scanner.Decode(p.prev, p.src, false)
	p.emitConstant(machine.FromObj(p.vm.NewString(decoded)))
}

func (p *parser) rawStringLiteral(canAssign bool) {
	decoded := scanner.Decode(p.prev, p.src, true)
	p.emitConstant(machine.FromObj(p.vm.NewString(decoded)))
}

func (p *parser) emitConstant(v machine.Value) {
	idx := p.makeConstant(v)
	p.emitBytes(machine.OpConstant, idx)
}

func (p *parser) literal(canAssign bool) {
	switch p.prev.Kind {
	case token.FALSE:
		p.emitOp(machine.OpFalse)
	case token.TRUE:
		p.emitOp(machine.OpTrue)
	case token.NULL:
		p.emitOp(machine.OpNull)
	}
}

func (p *parser) grouping(canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "expect ')' after expression")
}

func (p *parser) unary(canAssign bool) {
	opKind := p.prev.Kind
	p.parsePrecedence(precUnary)
	switch opKind {
	case token.MINUS:
		p.emitOp(machine.OpNegate)
	case token.BANG:
		p.emitOp(machine.OpNot)
	}
}

func (p *parser) binary(canAssign bool) {
	opKind := p.prev.Kind
	rule := ruleFor(opKind)
	p.parsePrecedence(rule.prec + 1)
	switch opKind {
	case token.PLUS:
		p.emitOp(machine.OpAdd)
	case token.MINUS:
		p.emitOp(machine.OpSubtract)
	case token.STAR:
		p.emitOp(machine.OpMultiply)
	case token.SLASH:
		p.emitOp(machine.OpDivide)
	case token.PERCENT:
		p.emitOp(machine.OpMod)
	case token.EQ_EQ:
		p.emitOp(machine.OpEqual)
	case token.BANG_EQ:
		p.emitOp(machine.OpEqual)
		p.emitOp(machine.OpNot)
	case token.GT:
		p.emitOp(machine.OpGreater)
	case token.GT_EQ:
		p.emitOp(machine.OpLess)
		p.emitOp(machine.OpNot)
	case token.LT:
		p.emitOp(machine.OpLess)
	case token.LT_EQ:
		p.emitOp(machine.OpGreater)
		p.emitOp(machine.OpNot)
	}
}

// power is right-associative: `2 ** 3 ** 2` parses as `2 ** (3 ** 2)`, so
// its right operand is parsed at its own precedence rather than one above.
func (p *parser) power(canAssign bool) {
	p.parsePrecedence(precPower)
	p.emitOp(machine.OpPower)
}

func (p *parser) and(canAssign bool) {
	endJump := p.emitJump(machine.OpJumpIfFalse)
	p.emitOp(machine.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *parser) or(canAssign bool) {
	elseJump := p.emitJump(machine.OpJumpIfFalse)
	endJump := p.emitJump(machine.OpJump)
	p.patchJump(elseJump)
	p.emitOp(machine.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emitBytes(machine.OpCall, argCount)
}

func (p *parser) argumentList() byte {
	var count int
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			count++
			if count > 255 {
				p.error("can't have more than 255 arguments")
			}
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expect ')' after arguments")
	return byte(count)
}

func (p *parser) listLiteral(canAssign bool) {
	var count int
	if !p.check(token.RBRACK) {
		for {
			p.expression()
			count++
			if count > 255 {
				p.error("can't have more than 255 elements in a list literal")
			}
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RBRACK, "expect ']' after list elements")
	p.emitBytes(machine.OpMakeList, byte(count))
}

// subscript compiles `[` as the infix indexing operator (list already on
// the stack from the primary expression), including assignment and
// compound-assignment into the indexed slot.
func (p *parser) subscript(canAssign bool) {
	p.expression()
	p.consume(token.RBRACK, "expect ']' after index")

	if canAssign && p.match(token.EQ) {
		p.expression()
		p.emitOp(machine.OpSubscriptAssign)
		return
	}
	if canAssign && p.matchCompoundOp() {
		op := p.compoundOp
		p.emitOp(machine.OpSubscriptIdxNoPop)
		p.expression()
		p.emitOp(op)
		p.emitOp(machine.OpSubscriptAssign)
		return
	}
	p.emitOp(machine.OpSubscriptIdx)
}

func (p *parser) dot(canAssign bool) {
	p.consume(token.IDENT, "expect property name after '.'")
	name := p.prev.Lexeme(p.src)
	idx := p.identifierConstant(name)

	switch {
	case canAssign && p.match(token.EQ):
		p.expression()
		p.emitBytes(machine.OpSetProperty, idx)
	case canAssign && p.matchCompoundOp():
		op := p.compoundOp
		p.emitBytes(machine.OpGetPropertyNoPop, idx)
		p.expression()
		p.emitOp(op)
		p.emitBytes(machine.OpSetProperty, idx)
	case p.match(token.LPAREN):
		argCount := p.argumentList()
		p.emitBytes(machine.OpInvoke, idx)
		p.emitByte(argCount)
	default:
		p.emitBytes(machine.OpGetProperty, idx)
	}
}

// matchCompoundOp consumes a compound-assignment operator if present,
// recording the arithmetic opcode it desugars to in p.compoundOp and
// reporting whether one was found.
func (p *parser) matchCompoundOp() bool {
	switch {
	case p.match(token.PLUS_EQ):
		p.compoundOp = machine.OpAdd
	case p.match(token.MINUS_EQ):
		p.compoundOp = machine.OpSubtract
	case p.match(token.STAR_EQ):
		p.compoundOp = machine.OpMultiply
	case p.match(token.SLASH_EQ):
		p.compoundOp = machine.OpDivide
	default:
		return false
	}
	return true
}

func (p *parser) variable(canAssign bool) {
	p.namedVariable(p.prev, canAssign)
}

func (p *parser) namedVariable(tok token.Token, canAssign bool) {
	name := tok.Lexeme(p.src)

	var getOp, setOp machine.OpCode
	var arg byte
	hasSetter := true
	isConst := false

	if slot := resolveLocal(p.fs, name); slot != -1 {
		if p.fs.locals[slot].depth == -1 {
			p.error("can't read local variable " + strconv.Quote(name) + " in its own initializer")
		}
		getOp, setOp, arg = machine.OpGetLocal, machine.OpSetLocal, byte(slot)
	} else if up := resolveUpvalue(p.fs, name); up != -1 {
		getOp, setOp, arg = machine.OpGetUpvalue, machine.OpSetUpvalue, byte(up)
	} else if !p.moduleNames[name] && p.vm.HasGlobal(name) {
		getOp, arg = machine.OpGetGlobal, p.identifierConstant(name)
		hasSetter = false
	} else {
		getOp, setOp, arg = machine.OpGetModule, machine.OpSetModule, p.identifierConstant(name)
		isConst = p.moduleConsts[name]
	}

	checkAssignable := func() {
		if !hasSetter {
			p.error("can't assign to " + strconv.Quote(name))
		} else if isConst {
			p.error(strconv.Quote(name) + " is const and cannot be reassigned")
		}
	}

	switch {
	case canAssign && p.match(token.EQ):
		checkAssignable()
		p.expression()
		p.emitBytes(setOp, arg)
	case canAssign && p.matchCompoundOp():
		op := p.compoundOp
		checkAssignable()
		p.emitBytes(getOp, arg)
		p.expression()
		p.emitOp(op)
		p.emitBytes(setOp, arg)
	case canAssign && hasSetter && (p.check(token.PLUS_PLUS) || p.check(token.MINUS_MINUS)):
		incr := p.cur.Kind == token.PLUS_PLUS
		p.advance()
		checkAssignable()
		p.emitBytes(getOp, arg)
		if incr {
			p.emitOp(machine.OpIncrement)
		} else {
			p.emitOp(machine.OpDecrement)
		}
		p.emitBytes(setOp, arg)
	default:
		p.emitBytes(getOp, arg)
	}
}

func (p *parser) this(canAssign bool) {
	if p.cs == nil {
		p.error("can't use 'this' outside a method")
		return
	}
	p.variable(false)
}

func (p *parser) super(canAssign bool) {
	if p.cs == nil {
		p.error("can't use 'super' outside a class")
	} else if !p.cs.hasSuperclass {
		p.error("can't use 'super' in a class with no superclass")
	}
	p.consume(token.DOT, "expect '.' after 'super'")
	p.consume(token.IDENT, "expect superclass method name")
	name := p.prev.Lexeme(p.src)
	idx := p.identifierConstant(name)

	p.loadVariable("this")
	if p.match(token.LPAREN) {
		argCount := p.argumentList()
		p.loadVariable("super")
		p.emitBytes(machine.OpSuperInvoke, idx)
		p.emitByte(argCount)
	} else {
		p.loadVariable("super")
		p.emitBytes(machine.OpGetSuper, idx)
	}
}

// loadVariable emits a plain (non-assignable) load of the local or
// upvalue named name, used for the synthetic "this"/"super" bindings a
// method or subclass body always has in scope.
func (p *parser) loadVariable(name string) {
	if slot := resolveLocal(p.fs, name); slot != -1 {
		p.emitBytes(machine.OpGetLocal, byte(slot))
		return
	}
	if up := resolveUpvalue(p.fs, name); up != -1 {
		p.emitBytes(machine.OpGetUpvalue, byte(up))
		return
	}
	p.error("internal: cannot resolve " + name)
}
