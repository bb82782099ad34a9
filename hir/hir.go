// Package hir defines the desugared High-level IR: a tree that mirrors the
// ast package's shape but has synonym operators normalised to one canonical
// form, stopwords and presentational tokens folded away, and every
// expression tagged with a static type hint.
package hir

import (
	"github.com/machine-dialect/compiler/ast"
	"github.com/machine-dialect/compiler/token"
)

// Type is the static type hint attached to every HIR expression.
type Type int

const (
	Unknown Type = iota
	TEmpty
	TBool
	TInt
	TFloat
	TString
	TURL
)

func (t Type) String() string {
	switch t {
	case TEmpty:
		return "Empty"
	case TBool:
		return "Bool"
	case TInt:
		return "Int"
	case TFloat:
		return "Float"
	case TString:
		return "String"
	case TURL:
		return "Url"
	default:
		return "Unknown"
	}
}

// builtinReturnTypes records the declared return type of every built-in the
// VM implements, so a Call to one of them yields a typed hint instead of
// Unknown. User-defined Action/Interaction calls stay Unknown unless an
// explicit #### Outputs header names a single typed parameter.
var builtinReturnTypes = map[string]Type{
	"print":    TEmpty,
	"say":      TEmpty,
	"type":     TString,
	"len":      TInt,
	"str":      TString,
	"int":      TInt,
	"float":    TFloat,
	"bool":     TBool,
	"abs":      TInt, // the hint stays Int; at runtime a Float operand yields a Float
	"min":      TInt,
	"max":      TInt,
	"is_empty": TBool,
	"round":    TInt,
}

// Node is implemented by every HIR node.
type Node interface {
	Span() ast.Span
	node()
}

// Expr is an HIR expression, always carrying a static type hint.
type Expr interface {
	Node
	expr()
	HIRType() Type
}

// Stmt is an HIR statement.
type Stmt interface {
	Node
	stmt()
}

type IntLiteral struct {
	SpanVal ast.Span
	Value   int64
}

func (n *IntLiteral) Span() ast.Span { return n.SpanVal }
func (n *IntLiteral) node()          {}
func (n *IntLiteral) expr()          {}
func (n *IntLiteral) HIRType() Type  { return TInt }

type FloatLiteral struct {
	SpanVal ast.Span
	Value   float64
}

func (n *FloatLiteral) Span() ast.Span { return n.SpanVal }
func (n *FloatLiteral) node()          {}
func (n *FloatLiteral) expr()          {}
func (n *FloatLiteral) HIRType() Type  { return TFloat }

type StringLiteral struct {
	SpanVal ast.Span
	Value   string
}

func (n *StringLiteral) Span() ast.Span { return n.SpanVal }
func (n *StringLiteral) node()          {}
func (n *StringLiteral) expr()          {}
func (n *StringLiteral) HIRType() Type  { return TString }

type URLLiteral struct {
	SpanVal ast.Span
	Value   string
}

func (n *URLLiteral) Span() ast.Span { return n.SpanVal }
func (n *URLLiteral) node()          {}
func (n *URLLiteral) expr()          {}
func (n *URLLiteral) HIRType() Type  { return TURL }

type BoolLiteral struct {
	SpanVal ast.Span
	Value   bool
}

func (n *BoolLiteral) Span() ast.Span { return n.SpanVal }
func (n *BoolLiteral) node()          {}
func (n *BoolLiteral) expr()          {}
func (n *BoolLiteral) HIRType() Type  { return TBool }

type EmptyLiteral struct {
	SpanVal ast.Span
}

func (n *EmptyLiteral) Span() ast.Span { return n.SpanVal }
func (n *EmptyLiteral) node()          {}
func (n *EmptyLiteral) expr()          {}
func (n *EmptyLiteral) HIRType() Type  { return TEmpty }

// Identifier references a variable; its type hint is resolved from the
// enclosing scope's declared-type table by the pass that builds HIR
// (Unknown if the binding's type can't be determined statically).
type Identifier struct {
	SpanVal ast.Span
	Name    string
	Type    Type
}

func (n *Identifier) Span() ast.Span { return n.SpanVal }
func (n *Identifier) node()          {}
func (n *Identifier) expr()          {}
func (n *Identifier) HIRType() Type  { return n.Type }

// PrefixExpr is a normalised unary operator application.
type PrefixExpr struct {
	SpanVal  ast.Span
	Operator token.OperatorID
	Operand  Expr
	Type     Type
}

func (n *PrefixExpr) Span() ast.Span { return n.SpanVal }
func (n *PrefixExpr) node()          {}
func (n *PrefixExpr) expr()          {}
func (n *PrefixExpr) HIRType() Type  { return n.Type }

// BinaryExpr is a normalised binary operator application — every
// natural-language comparator synonym the parser resolved has already
// become one of the canonical token.OperatorID values.
type BinaryExpr struct {
	SpanVal  ast.Span
	Operator token.OperatorID
	Left     Expr
	Right    Expr
	Type     Type
}

func (n *BinaryExpr) Span() ast.Span { return n.SpanVal }
func (n *BinaryExpr) node()          {}
func (n *BinaryExpr) expr()          {}
func (n *BinaryExpr) HIRType() Type  { return n.Type }

// IfExpr is the desugared ternary conditional: a value-bearing If with two
// single-expression blocks, replacing ast.ConditionalExpr.
type IfExpr struct {
	SpanVal     ast.Span
	Condition   Expr
	Consequence Expr
	Alternative Expr
	Type        Type
}

func (n *IfExpr) Span() ast.Span { return n.SpanVal }
func (n *IfExpr) node()          {}
func (n *IfExpr) expr()          {}
func (n *IfExpr) HIRType() Type  { return n.Type }

// NamedArg is a `name: value` call argument, HIR form.
type NamedArg struct {
	Name  string
	Value Expr
}

// CallExpr is a call to a built-in or user-defined Action/Interaction,
// used both as an expression (spec: calls produce a value) and wrapped by
// CallStmt when used as a bare statement.
type CallExpr struct {
	SpanVal    ast.Span
	Name       string
	Positional []Expr
	Named      []NamedArg
	Type       Type
}

func (n *CallExpr) Span() ast.Span { return n.SpanVal }
func (n *CallExpr) node()          {}
func (n *CallExpr) expr()          {}
func (n *CallExpr) HIRType() Type  { return n.Type }

// ErrorExpr marks a node the parser could not resolve to a valid
// expression; it carries Unknown type and lowers to a LoadConst Empty.
type ErrorExpr struct {
	SpanVal ast.Span
}

func (n *ErrorExpr) Span() ast.Span { return n.SpanVal }
func (n *ErrorExpr) node()          {}
func (n *ErrorExpr) expr()          {}
func (n *ErrorExpr) HIRType() Type  { return Unknown }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// SetStmt assigns Value to the variable Name — both `Set X to Y` spellings
// normalise to this one node.
type SetStmt struct {
	SpanVal ast.Span
	Name    string
	Value   Expr
}

func (n *SetStmt) Span() ast.Span { return n.SpanVal }
func (n *SetStmt) node()          {}
func (n *SetStmt) stmt()          {}

// ReturnStmt normalises `Give back` / `Gives back`.
type ReturnStmt struct {
	SpanVal ast.Span
	Value   Expr // nil for a bare return
}

func (n *ReturnStmt) Span() ast.Span { return n.SpanVal }
func (n *ReturnStmt) node()          {}
func (n *ReturnStmt) stmt()          {}

// CallStmt is a CallExpr used for effect, its value discarded.
type CallStmt struct {
	SpanVal ast.Span
	Call    *CallExpr
}

func (n *CallStmt) Span() ast.Span { return n.SpanVal }
func (n *CallStmt) node()          {}
func (n *CallStmt) stmt()          {}

type Block struct {
	SpanVal    ast.Span
	Statements []Stmt
}

func (n *Block) Span() ast.Span { return n.SpanVal }
func (n *Block) node()          {}

// IfStmt normalises `If`/`When`/`Whenever` ... `else`/`otherwise` to one
// shape; the condition keyword synonym is not retained past this point.
type IfStmt struct {
	SpanVal     ast.Span
	Condition   Expr
	Consequence *Block
	Alternative *Block
}

func (n *IfStmt) Span() ast.Span { return n.SpanVal }
func (n *IfStmt) node()          {}
func (n *IfStmt) stmt()          {}

type Param struct {
	Name string
	Type Type
}

// DefStmt normalises `Action`/`Interaction` to a single node with a
// Public flag (true for Interaction).
type DefStmt struct {
	SpanVal ast.Span
	Name    string
	Public  bool
	Inputs  []Param
	Outputs []Param
	Body    *Block
}

func (n *DefStmt) Span() ast.Span { return n.SpanVal }
func (n *DefStmt) node()          {}
func (n *DefStmt) stmt()          {}

type SayStmt struct {
	SpanVal ast.Span
	Value   Expr
}

func (n *SayStmt) Span() ast.Span { return n.SpanVal }
func (n *SayStmt) node()          {}
func (n *SayStmt) stmt()          {}

// ExpressionStmt wraps a bare expression statement; its value is the
// implicit-main result if it is the program's last statement.
type ExpressionStmt struct {
	SpanVal ast.Span
	Value   Expr
}

func (n *ExpressionStmt) Span() ast.Span { return n.SpanVal }
func (n *ExpressionStmt) node()          {}
func (n *ExpressionStmt) stmt()          {}

// ErrorStmt marks a statement the parser could not parse.
type ErrorStmt struct {
	SpanVal ast.Span
}

func (n *ErrorStmt) Span() ast.Span { return n.SpanVal }
func (n *ErrorStmt) node()          {}
func (n *ErrorStmt) stmt()          {}

// Program is the root HIR node: the implicit `main` body.
type Program struct {
	Statements []Stmt
}
