// Package parser implements a hybrid recursive-descent + Pratt
// (precedence-climbing) parser with panic-mode error recovery, producing
// an ast.Program plus an ordered, deduplicated diagnostic list.
package parser

import (
	"strconv"
	"strings"

	"github.com/machine-dialect/compiler/ast"
	"github.com/machine-dialect/compiler/diagnostics"
	"github.com/machine-dialect/compiler/lexer"
	"github.com/machine-dialect/compiler/token"
)

// maxPanicRecoveries bounds panic-mode resynchronisation so a pathological
// input cannot loop the parser forever.
const maxPanicRecoveries = 20

// precedence, lowest to highest: conditional < or < and < equality/strict <
// relational < additive < multiplicative < unary < grouping.
type precedence int

const (
	precLowest precedence = iota
	precConditional
	precOr
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
)

var operatorPrecedence = map[token.OperatorID]precedence{
	token.OpOr:         precOr,
	token.OpAnd:        precAnd,
	token.OpEq:         precEquality,
	token.OpNeq:        precEquality,
	token.OpStrictEq:   precEquality,
	token.OpStrictNeq:  precEquality,
	token.OpLt:         precRelational,
	token.OpGt:         precRelational,
	token.OpLte:        precRelational,
	token.OpGte:        precRelational,
	token.OpAdd:        precAdditive,
	token.OpSub:        precAdditive,
	token.OpMul:        precMultiplicative,
	token.OpDiv:        precMultiplicative,
	token.OpMod:        precMultiplicative,
}

// Parser consumes a lexer.Lexer's token stream with a 4-token lookahead
// buffer and emits ast.Stmt/ast.Expr nodes plus diagnostics.
type Parser struct {
	lex  *lexer.Lexer
	buf  [4]token.Token
	sink *diagnostics.Sink

	recoveries int
}

// New creates a Parser over src, reporting diagnostics to sink.
func New(src string, sink *diagnostics.Sink) *Parser {
	p := &Parser{lex: lexer.New(src), sink: sink}
	for i := range p.buf {
		p.buf[i] = p.lex.NextToken()
	}
	return p
}

func (p *Parser) cur() token.Token       { return p.buf[0] }
func (p *Parser) peek(k int) token.Token { return p.buf[k] }

func (p *Parser) advance() {
	copy(p.buf[:], p.buf[1:])
	p.buf[len(p.buf)-1] = p.lex.NextToken()
}

func (p *Parser) curIsKeyword(k token.KeywordID) bool {
	return p.cur().Kind == token.Keyword && p.cur().Keyword == k
}

func (p *Parser) curIsOperator(o token.OperatorID) bool {
	return p.cur().Kind == token.Operator && p.cur().Operator == o
}

func (p *Parser) curIsPunct(s string) bool {
	return p.cur().Kind == token.Punctuation && p.cur().Lexeme == s
}

func (p *Parser) errorf(format string, args ...any) {
	p.sink.Errorf(diagnostics.Syntactic, diagnostics.Position{Line: p.cur().Pos.Line, Column: p.cur().Pos.Column}, format, args...)
}

// expectPunct consumes a punctuation token matching s or records a
// diagnostic and leaves the cursor in place.
func (p *Parser) expectPunct(s string) bool {
	if p.curIsPunct(s) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %s", s, p.cur())
	return false
}

func (p *Parser) expectKeyword(k token.KeywordID, name string) bool {
	if p.curIsKeyword(k) {
		p.advance()
		return true
	}
	p.errorf("expected %s, got %s", name, p.cur())
	return false
}

func (p *Parser) expectIdentifier() (string, bool) {
	if p.cur().Kind == token.Identifier {
		name := p.cur().Lexeme
		p.advance()
		return name, true
	}
	p.errorf("expected a backtick-wrapped identifier, got %s", p.cur())
	return "", false
}

// synchronize implements panic-mode recovery: collect tokens until the next
// synchronisation point (period, EOF, or a statement-starting keyword),
// returning the skipped tokens.
func (p *Parser) synchronize() []token.Token {
	p.recoveries++
	var skipped []token.Token
	for !p.cur().IsSynchronizer() {
		skipped = append(skipped, p.cur())
		p.advance()
	}
	if p.curIsPunct(".") {
		p.advance()
	}
	return skipped
}

func (p *Parser) tooManyRecoveries() bool { return p.recoveries > maxPanicRecoveries }

// ---------------------------------------------------------------------------
// Program / statements
// ---------------------------------------------------------------------------

// ParseProgram parses the whole token stream into a Program.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur().Kind != token.EOF {
		if p.tooManyRecoveries() {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	p.drainLexerDiagnostics()
	return prog
}

// drainLexerDiagnostics forwards diagnostics the lexer collected (e.g. an
// unrecognised bold-marker phrase) into the parser's shared sink, since the
// lexer has no sink of its own.
func (p *Parser) drainLexerDiagnostics() {
	for _, d := range p.lex.Diagnostics() {
		p.sink.Report(d)
	}
}

func (p *Parser) parseStatement() ast.Stmt {
	// Block markers and stray stopwords never start a statement; skip them
	// defensively rather than treating them as errors.
	for p.cur().Kind == token.Stopword || p.cur().Kind == token.BlockMarker {
		p.advance()
	}

	if p.cur().Kind == token.Keyword {
		switch p.cur().Keyword {
		case token.KwSet:
			return p.parseSetStmt()
		case token.KwGiveBack:
			return p.parseReturnStmt()
		case token.KwIf, token.KwWhen, token.KwWhenever:
			return p.parseIfStmt()
		case token.KwCall, token.KwUse, token.KwApply:
			return p.parseCallStmt()
		case token.KwSay:
			return p.parseSayStmt()
		}
	}
	if p.curIsPunct("###") {
		return p.parseDefStmt()
	}

	startPos := p.cur().Pos
	expr := p.parseExpression(precLowest)
	if expr == nil {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(startPos, p.cur().Pos), Skipped: skipped}
	}
	p.expectPunct(".")
	return &ast.ExpressionStmt{SpanVal: ast.MakeSpan(startPos, p.cur().Pos), Value: expr}
}

// parseSetStmt: `Set \`ident\` to expression.`
func (p *Parser) parseSetStmt() ast.Stmt {
	start := p.cur().Pos
	p.advance() // 'Set'
	name, ok := p.expectIdentifier()
	if !ok {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	if !p.expectKeyword(token.KwTo, "'to'") {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	value := p.parseExpression(precLowest)
	if value == nil {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	p.expectPunct(".")
	return &ast.SetStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Name: name, Value: value}
}

// parseReturnStmt: `Give back [expression].`
func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.cur().Pos
	p.advance() // 'Give back'
	if p.curIsPunct(".") {
		p.advance()
		return &ast.ReturnStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos)}
	}
	value := p.parseExpression(precLowest)
	p.expectPunct(".")
	return &ast.ReturnStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: value}
}

// parseSayStmt: `Say expression.`
func (p *Parser) parseSayStmt() ast.Stmt {
	start := p.cur().Pos
	p.advance() // 'Say'
	value := p.parseExpression(precLowest)
	if value == nil {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	p.expectPunct(".")
	return &ast.SayStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: value}
}

// parseCallStmt: `Call/Use/Apply \`ident\` [with args].`
func (p *Parser) parseCallStmt() ast.Stmt {
	start := p.cur().Pos
	p.advance() // Call/Use/Apply
	name, ok := p.expectIdentifier()
	if !ok {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	var args *ast.CallArgs
	if p.curIsKeyword(token.KwWith) {
		p.advance()
		args = p.parseCallArgs()
	}
	p.expectPunct(".")
	return &ast.CallStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Name: name, Args: args}
}

// parseCallArgs parses a comma-separated mixed list of positional
// expressions and `name: value` named pairs; positional arguments must
// precede named arguments; duplicate named arguments are a diagnostic.
func (p *Parser) parseCallArgs() *ast.CallArgs {
	start := p.cur().Pos
	args := &ast.CallArgs{}
	seenNamed := map[string]bool{}
	sawNamed := false

	for {
		if p.cur().Kind == token.Identifier && p.peek(1).Kind == token.Punctuation && p.peek(1).Lexeme == ":" {
			name := p.cur().Lexeme
			p.advance() // name
			p.advance() // ':'
			val := p.parseExpression(precLowest)
			if seenNamed[name] {
				p.errorf("duplicate named argument %q", name)
			}
			seenNamed[name] = true
			sawNamed = true
			args.Named = append(args.Named, ast.NamedArg{Name: name, Value: val})
		} else {
			val := p.parseExpression(precLowest)
			if sawNamed {
				p.errorf("positional argument follows a named argument")
			}
			args.Positional = append(args.Positional, val)
		}
		if p.curIsPunct(",") {
			p.advance()
			continue
		}
		break
	}
	args.SpanVal = ast.MakeSpan(start, p.cur().Pos)
	return args
}

// blockKeywordEndsBlock reports whether k is a statement-level keyword that
// implicitly ends the enclosing block on its own, with no closing marker.
func blockKeywordEndsBlock(k token.KeywordID) bool {
	switch k {
	case token.KwElse, token.KwOtherwise:
		return true
	}
	return false
}

// parseBlock parses one or more consecutive block-marker lines whose depth
// is strictly greater than enclosingDepth.
func (p *Parser) parseBlock(enclosingDepth int) *ast.BlockStmt {
	start := p.cur().Pos
	block := &ast.BlockStmt{SpanVal: ast.MakeSpan(start, start)}
	first := true
	for p.cur().Kind == token.BlockMarker && p.cur().Depth > enclosingDepth {
		if first {
			block.Depth = p.cur().Depth
			first = false
		} else if p.cur().Depth != block.Depth {
			// A shallower (but still > enclosingDepth) marker belongs to a
			// nested construct already consumed by a nested parseBlock
			// call; a deeper one is malformed and treated as this depth.
			break
		}
		p.advance() // consume the marker
		if p.cur().Kind == token.Keyword && blockKeywordEndsBlock(p.cur().Keyword) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		if p.tooManyRecoveries() {
			break
		}
	}
	if block.Depth == 0 {
		block.Depth = enclosingDepth + 1
	}
	block.SpanVal.End = p.cur().Pos
	return block
}

// parseIfStmt: `If/When/Whenever COND then? :? block [else|otherwise block]`
func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.cur().Pos
	p.advance() // If/When/Whenever

	cond := p.parseExpression(precLowest)
	if cond == nil {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	if p.curIsKeyword(token.KwThen) {
		p.advance()
	}
	if p.curIsPunct(":") {
		p.advance()
	}

	enclosingDepth := 0
	body := p.parseBlock(enclosingDepth)

	var alt *ast.BlockStmt
	if p.curIsKeyword(token.KwElse) || p.curIsKeyword(token.KwOtherwise) {
		p.advance()
		if p.curIsPunct(":") {
			p.advance()
		}
		alt = p.parseBlock(enclosingDepth)
	}

	return &ast.IfStmt{
		SpanVal:     ast.MakeSpan(start, p.cur().Pos),
		Condition:   cond,
		Consequence: body,
		Alternative: alt,
	}
}

// parseDefStmt: `### **Action|Interaction**: \`ident\`` + optional
// `#### Inputs`/`#### Outputs` headers + a `<details>` body block.
func (p *Parser) parseDefStmt() ast.Stmt {
	start := p.cur().Pos
	p.advance() // '###'

	public := false
	if p.curIsKeyword(token.KwAction) {
		p.advance()
	} else if p.curIsKeyword(token.KwInteraction) {
		public = true
		p.advance()
	} else {
		p.errorf("expected 'Action' or 'Interaction' header")
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}
	p.expectPunct(":")
	name, ok := p.expectIdentifier()
	if !ok {
		skipped := p.synchronize()
		return &ast.ErrorStmt{SpanVal: ast.MakeSpan(start, p.cur().Pos), Skipped: skipped}
	}

	def := &ast.DefStmt{Name: name, Public: public}

	for p.curIsPunct("####") {
		p.advance()
		if p.curIsKeyword(token.KwInputs) {
			p.advance()
			def.Inputs = p.parseParamList()
		} else if p.curIsKeyword(token.KwOutputs) {
			p.advance()
			def.Outputs = p.parseParamList()
		} else {
			p.errorf("expected 'Inputs' or 'Outputs' after '####'")
			break
		}
	}

	if p.cur().Kind == token.Punctuation && strings.HasPrefix(p.cur().Lexeme, "<details") {
		p.advance()
	}
	def.Body = p.parseBlock(0)
	if p.cur().Kind == token.Punctuation && strings.HasPrefix(p.cur().Lexeme, "</details") {
		p.advance()
	}
	def.SpanVal = ast.MakeSpan(start, p.cur().Pos)
	return def
}

// parseParamList parses a sequence of backtick-identifier parameter names
// declared under an Inputs/Outputs header, one per line of the form
// `` `name` `` optionally followed by a colon and a type hint word.
func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	for p.cur().Kind == token.Identifier {
		name := p.cur().Lexeme
		p.advance()
		hint := ""
		if p.curIsPunct(":") {
			p.advance()
			if p.cur().Kind == token.Identifier {
				hint = p.cur().Lexeme
				p.advance()
			}
		}
		params = append(params, ast.Param{Name: name, TypeHint: hint})
		if p.curIsPunct(",") {
			p.advance()
		}
	}
	return params
}

// ---------------------------------------------------------------------------
// Expressions (Pratt / precedence-climbing)
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(min precedence) ast.Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for {
		if p.cur().Kind == token.Operator {
			opPrec, ok := operatorPrecedence[p.cur().Operator]
			if !ok || opPrec < min {
				break
			}
			left = p.parseInfix(left, opPrec)
			continue
		}
		if p.curIsKeyword(token.KwIf) || p.curIsKeyword(token.KwWhen) {
			if precConditional < min {
				break
			}
			left = p.parseConditional(left)
			continue
		}
		break
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expr {
	start := p.cur().Pos
	switch {
	case p.cur().Kind == token.Int:
		v, err := strconv.ParseInt(p.cur().Lexeme, 10, 64)
		if err != nil {
			p.errorf("invalid integer literal: %q", p.cur().Lexeme)
			p.advance()
			return nil
		}
		p.advance()
		return &ast.IntLiteral{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: v}

	case p.cur().Kind == token.Float:
		v, err := strconv.ParseFloat(p.cur().Lexeme, 64)
		if err != nil {
			p.errorf("invalid float literal: %q", p.cur().Lexeme)
			p.advance()
			return nil
		}
		p.advance()
		return &ast.FloatLiteral{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: v}

	case p.cur().Kind == token.String:
		v := p.cur().Lexeme
		p.advance()
		return &ast.StringLiteral{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: v}

	case p.cur().Kind == token.URL:
		v := p.cur().Lexeme
		p.advance()
		return &ast.URLLiteral{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: v}

	case p.cur().Kind == token.Boolean:
		v := p.cur().Lexeme == "true"
		p.advance()
		return &ast.BoolLiteral{SpanVal: ast.MakeSpan(start, p.cur().Pos), Value: v}

	case p.cur().Kind == token.Empty:
		p.advance()
		return &ast.EmptyLiteral{SpanVal: ast.MakeSpan(start, p.cur().Pos)}

	case p.cur().Kind == token.Identifier:
		name := p.cur().Lexeme
		p.advance()
		return &ast.Identifier{SpanVal: ast.MakeSpan(start, p.cur().Pos), Name: name}

	case p.curIsOperator(token.OpSub) || p.curIsOperator(token.OpNot):
		op := p.cur().Operator
		p.advance()
		operand := p.parseExpression(precUnary)
		if operand == nil {
			return nil
		}
		return &ast.PrefixExpr{SpanVal: ast.MakeSpan(start, p.cur().Pos), Operator: op, Operand: operand}

	case p.curIsPunct("("):
		p.advance()
		inner := p.parseExpression(precLowest)
		p.expectPunct(")")
		return &ast.GroupingExpr{SpanVal: ast.MakeSpan(start, p.cur().Pos), Inner: inner}

	default:
		p.errorf("unexpected token %s at start of expression", p.cur())
		return nil
	}
}

func (p *Parser) parseInfix(left ast.Expr, prec precedence) ast.Expr {
	start := left.Span().Start
	op := p.cur().Operator
	p.advance()
	right := p.parseExpression(prec + 1)
	if right == nil {
		p.errorf("expected expression after operator")
		return left
	}
	return &ast.InfixExpr{SpanVal: ast.MakeSpan(start, p.cur().Pos), Operator: op, Left: left, Right: right}
}

// parseConditional handles the ternary form `X if COND else Y` / `X when
// COND otherwise Y` — the condition is deliberately in the middle.
func (p *Parser) parseConditional(consequence ast.Expr) ast.Expr {
	start := consequence.Span().Start
	p.advance() // 'if' / 'when'
	cond := p.parseExpression(precConditional + 1)
	if p.curIsKeyword(token.KwElse) || p.curIsKeyword(token.KwOtherwise) {
		p.advance()
	} else {
		p.errorf("expected 'else' or 'otherwise' in conditional expression")
	}
	alt := p.parseExpression(precConditional)
	return &ast.ConditionalExpr{
		SpanVal:     ast.MakeSpan(start, p.cur().Pos),
		Consequence: consequence,
		Condition:   cond,
		Alternative: alt,
	}
}
