// Package ast defines the Abstract Syntax Tree produced by the parser: a
// tagged tree with two root kinds, Expression and Statement, each node
// retaining its originating token for diagnostics.
package ast

import "github.com/machine-dialect/compiler/token"

// Span is a source range, retained on every node for diagnostics (spec's
// "source-position invariant").
type Span struct {
	Start token.Position
	End   token.Position
}

// Node is implemented by every AST node.
type Node interface {
	Span() Span
	node()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmt()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

type FloatLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

type URLLiteral struct {
	SpanVal Span
	Value   string
}

func (n *URLLiteral) Span() Span { return n.SpanVal }
func (n *URLLiteral) node()      {}
func (n *URLLiteral) expr()      {}

type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

type EmptyLiteral struct {
	SpanVal Span
}

func (n *EmptyLiteral) Span() Span { return n.SpanVal }
func (n *EmptyLiteral) node()      {}
func (n *EmptyLiteral) expr()      {}

// Identifier is a backtick-wrapped name reference.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// PrefixExpr is a unary `-` or `not` application.
type PrefixExpr struct {
	SpanVal  Span
	Operator token.OperatorID
	Operand  Expr
}

func (n *PrefixExpr) Span() Span { return n.SpanVal }
func (n *PrefixExpr) node()      {}
func (n *PrefixExpr) expr()      {}

// InfixExpr covers arithmetic, comparison, equality, and logical binary
// operators — whatever canonical operator the lexer/parser resolved a
// natural-language comparator phrase to.
type InfixExpr struct {
	SpanVal  Span
	Operator token.OperatorID
	Left     Expr
	Right    Expr
}

func (n *InfixExpr) Span() Span { return n.SpanVal }
func (n *InfixExpr) node()      {}
func (n *InfixExpr) expr()      {}

// ConditionalExpr is the ternary form `X if COND else Y` / `X when COND
// otherwise Y` — deliberately condition-in-the-middle.
type ConditionalExpr struct {
	SpanVal     Span
	Consequence Expr
	Condition   Expr
	Alternative Expr
}

func (n *ConditionalExpr) Span() Span { return n.SpanVal }
func (n *ConditionalExpr) node()      {}
func (n *ConditionalExpr) expr()      {}

// NamedArg is a `name: value` call argument.
type NamedArg struct {
	Name  string
	Value Expr
}

// CallArgs is the mixed positional/named argument list of a Call statement.
type CallArgs struct {
	SpanVal   Span
	Positional []Expr
	Named      []NamedArg
}

func (n *CallArgs) Span() Span { return n.SpanVal }
func (n *CallArgs) node()      {}
func (n *CallArgs) expr()      {}

// GroupingExpr is a parenthesised expression, retained so the original
// grouping round-trips through parse→print.
type GroupingExpr struct {
	SpanVal Span
	Inner   Expr
}

func (n *GroupingExpr) Span() Span { return n.SpanVal }
func (n *GroupingExpr) node()      {}
func (n *GroupingExpr) expr()      {}

// ErrorExpr records a panic-mode recovery site within an expression
// position, carrying the tokens skipped during recovery.
type ErrorExpr struct {
	SpanVal Span
	Skipped []token.Token
}

func (n *ErrorExpr) Span() Span { return n.SpanVal }
func (n *ErrorExpr) node()      {}
func (n *ErrorExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// SetStmt is `Set \`ident\` to expression.`
type SetStmt struct {
	SpanVal Span
	Name    string
	Value   Expr
}

func (n *SetStmt) Span() Span { return n.SpanVal }
func (n *SetStmt) node()      {}
func (n *SetStmt) stmt()      {}

// ReturnStmt is `Give back expression.` (bare `Give back.` has nil Value).
type ReturnStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// CallStmt is `Call/Use/Apply \`ident\` [with args].`
type CallStmt struct {
	SpanVal Span
	Name    string
	Args    *CallArgs // nil if no `with` clause
}

func (n *CallStmt) Span() Span { return n.SpanVal }
func (n *CallStmt) node()      {}
func (n *CallStmt) stmt()      {}

// BlockStmt is a sequence of statements at one explicit depth (>= 1).
type BlockStmt struct {
	SpanVal    Span
	Depth      int
	Statements []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// IfStmt is `If/When/Whenever COND then: block [else: block]`.
type IfStmt struct {
	SpanVal     Span
	Condition   Expr
	Consequence *BlockStmt
	Alternative *BlockStmt // nil if no else/otherwise clause
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// Param is a declared Action/Interaction input or output.
type Param struct {
	Name     string
	TypeHint string // as written in an #### Inputs/Outputs header, if any
}

// DefStmt is an `Action` (private) or `Interaction` (public) definition.
type DefStmt struct {
	SpanVal Span
	Name    string
	Public  bool
	Inputs  []Param
	Outputs []Param
	Body    *BlockStmt
}

func (n *DefStmt) Span() Span { return n.SpanVal }
func (n *DefStmt) node()      {}
func (n *DefStmt) stmt()      {}

// SayStmt is `Say expression.` — prints its argument; spec fixes that `say`
// itself evaluates to Empty (§9).
type SayStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *SayStmt) Span() Span { return n.SpanVal }
func (n *SayStmt) node()      {}
func (n *SayStmt) stmt()      {}

// ExpressionStmt wraps a bare expression used as a statement.
type ExpressionStmt struct {
	SpanVal Span
	Value   Expr
}

func (n *ExpressionStmt) Span() Span { return n.SpanVal }
func (n *ExpressionStmt) node()      {}
func (n *ExpressionStmt) stmt()      {}

// ErrorStmt records a panic-mode recovery site at statement granularity.
type ErrorStmt struct {
	SpanVal Span
	Skipped []token.Token
}

func (n *ErrorStmt) Span() Span { return n.SpanVal }
func (n *ErrorStmt) node()      {}
func (n *ErrorStmt) stmt()      {}

// Program is the ordered list of top-level statements — the parser's root
// output.
type Program struct {
	Statements []Stmt
}

// MakeSpan builds a Span from a start and end token position.
func MakeSpan(start, end token.Position) Span { return Span{Start: start, End: end} }

// ZeroSpan is the Span used for synthesized nodes with no source origin.
func ZeroSpan() Span { return Span{} }
