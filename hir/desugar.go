package hir

import (
	"github.com/machine-dialect/compiler/ast"
	"github.com/machine-dialect/compiler/token"
)

// scope tracks the static type hint last assigned to each variable name in
// the lexical region being desugared, so an Identifier reference can carry
// a type hint without a separate semantic-analysis pass.
type scope struct {
	parent *scope
	types  map[string]Type
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, types: map[string]Type{}}
}

func (s *scope) lookup(name string) Type {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.types[name]; ok {
			return t
		}
	}
	return Unknown
}

func (s *scope) set(name string, t Type) { s.types[name] = t }

// outputTypes is the DefStmt registry consulted so a Call to a user-defined
// Action/Interaction can pick up a typed hint when its Outputs header names
// exactly one output.
type outputTypes map[string]Type

// Desugar walks an ast.Program and produces its HIR form: synonym operators
// normalised, stopword/presentational tokens already absent (the parser
// never emitted nodes for them), every expression tagged with a type hint,
// and the ternary desugared into IfExpr.
func Desugar(prog *ast.Program) *Program {
	outs := outputTypes{}
	collectOutputTypes(prog.Statements, outs)

	root := newScope(nil)
	out := &Program{}
	for _, s := range prog.Statements {
		out.Statements = append(out.Statements, desugarStmt(s, root, outs))
	}
	return out
}

// collectOutputTypes pre-scans top-level Action/Interaction definitions so
// a call site appearing before the definition (or inside it, recursively)
// still resolves a typed hint.
func collectOutputTypes(stmts []ast.Stmt, outs outputTypes) {
	for _, s := range stmts {
		if def, ok := s.(*ast.DefStmt); ok && len(def.Outputs) == 1 {
			outs[def.Name] = typeHintFromName(def.Outputs[0].TypeHint)
		}
	}
}

func typeHintFromName(name string) Type {
	switch name {
	case "Int", "int":
		return TInt
	case "Float", "float":
		return TFloat
	case "Bool", "bool", "Boolean":
		return TBool
	case "String", "string":
		return TString
	case "Url", "url", "URL":
		return TURL
	case "Empty", "empty":
		return TEmpty
	default:
		return Unknown
	}
}

func desugarStmt(s ast.Stmt, sc *scope, outs outputTypes) Stmt {
	switch n := s.(type) {
	case *ast.SetStmt:
		val := desugarExpr(n.Value, sc, outs)
		sc.set(n.Name, val.HIRType())
		return &SetStmt{SpanVal: n.Span(), Name: n.Name, Value: val}

	case *ast.ReturnStmt:
		var val Expr
		if n.Value != nil {
			val = desugarExpr(n.Value, sc, outs)
		}
		return &ReturnStmt{SpanVal: n.Span(), Value: val}

	case *ast.CallStmt:
		return &CallStmt{SpanVal: n.Span(), Call: desugarCall(n.Name, n.Args, n.Span(), sc, outs)}

	case *ast.IfStmt:
		cond := desugarExpr(n.Condition, sc, outs)
		cons := desugarBlock(n.Consequence, sc, outs)
		var alt *Block
		if n.Alternative != nil {
			alt = desugarBlock(n.Alternative, sc, outs)
		}
		return &IfStmt{SpanVal: n.Span(), Condition: cond, Consequence: cons, Alternative: alt}

	case *ast.DefStmt:
		inner := newScope(sc)
		var inputs []Param
		for _, p := range n.Inputs {
			t := typeHintFromName(p.TypeHint)
			inner.set(p.Name, t)
			inputs = append(inputs, Param{Name: p.Name, Type: t})
		}
		var outputs []Param
		for _, p := range n.Outputs {
			outputs = append(outputs, Param{Name: p.Name, Type: typeHintFromName(p.TypeHint)})
		}
		body := desugarBlock(n.Body, inner, outs)
		return &DefStmt{SpanVal: n.Span(), Name: n.Name, Public: n.Public, Inputs: inputs, Outputs: outputs, Body: body}

	case *ast.SayStmt:
		return &SayStmt{SpanVal: n.Span(), Value: desugarExpr(n.Value, sc, outs)}

	case *ast.ExpressionStmt:
		return &ExpressionStmt{SpanVal: n.Span(), Value: desugarExpr(n.Value, sc, outs)}

	case *ast.ErrorStmt:
		return &ErrorStmt{SpanVal: n.Span()}

	default:
		return &ErrorStmt{SpanVal: s.Span()}
	}
}

func desugarBlock(b *ast.BlockStmt, sc *scope, outs outputTypes) *Block {
	if b == nil {
		return &Block{}
	}
	inner := newScope(sc)
	out := &Block{SpanVal: b.Span()}
	for _, s := range b.Statements {
		out.Statements = append(out.Statements, desugarStmt(s, inner, outs))
	}
	return out
}

func desugarCall(name string, args *ast.CallArgs, span ast.Span, sc *scope, outs outputTypes) *CallExpr {
	call := &CallExpr{SpanVal: span, Name: name}
	if args != nil {
		for _, p := range args.Positional {
			call.Positional = append(call.Positional, desugarExpr(p, sc, outs))
		}
		for _, na := range args.Named {
			call.Named = append(call.Named, NamedArg{Name: na.Name, Value: desugarExpr(na.Value, sc, outs)})
		}
	}
	if t, ok := builtinReturnTypes[name]; ok {
		call.Type = t
	} else if t, ok := outs[name]; ok {
		call.Type = t
	} else {
		call.Type = Unknown
	}
	return call
}

// normalizeOperator maps synonym operator spellings the parser may have
// already resolved to a canonical form; kept as an explicit identity-ish
// pass point so adding a synonym later only touches this function (spec
// §4.3's "normalise synonyms" is done entirely by the lexer's Operators
// table; this function returns op unchanged).
func normalizeOperator(op token.OperatorID) token.OperatorID { return op }

func desugarExpr(e ast.Expr, sc *scope, outs outputTypes) Expr {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return &IntLiteral{SpanVal: n.Span(), Value: n.Value}
	case *ast.FloatLiteral:
		return &FloatLiteral{SpanVal: n.Span(), Value: n.Value}
	case *ast.StringLiteral:
		return &StringLiteral{SpanVal: n.Span(), Value: n.Value}
	case *ast.URLLiteral:
		return &URLLiteral{SpanVal: n.Span(), Value: n.Value}
	case *ast.BoolLiteral:
		return &BoolLiteral{SpanVal: n.Span(), Value: n.Value}
	case *ast.EmptyLiteral:
		return &EmptyLiteral{SpanVal: n.Span()}

	case *ast.Identifier:
		return &Identifier{SpanVal: n.Span(), Name: n.Name, Type: sc.lookup(n.Name)}

	case *ast.PrefixExpr:
		operand := desugarExpr(n.Operand, sc, outs)
		return &PrefixExpr{SpanVal: n.Span(), Operator: normalizeOperator(n.Operator), Operand: operand, Type: unaryResultType(n.Operator, operand.HIRType())}

	case *ast.InfixExpr:
		left := desugarExpr(n.Left, sc, outs)
		right := desugarExpr(n.Right, sc, outs)
		return &BinaryExpr{
			SpanVal:  n.Span(),
			Operator: normalizeOperator(n.Operator),
			Left:     left,
			Right:    right,
			Type:     binaryResultType(n.Operator, left.HIRType(), right.HIRType()),
		}

	case *ast.ConditionalExpr:
		cons := desugarExpr(n.Consequence, sc, outs)
		cond := desugarExpr(n.Condition, sc, outs)
		alt := desugarExpr(n.Alternative, sc, outs)
		t := cons.HIRType()
		if t != alt.HIRType() {
			t = Unknown
		}
		return &IfExpr{SpanVal: n.Span(), Condition: cond, Consequence: cons, Alternative: alt, Type: t}

	case *ast.GroupingExpr:
		return desugarExpr(n.Inner, sc, outs)

	case *ast.ErrorExpr:
		return &ErrorExpr{SpanVal: n.Span()}

	default:
		return &ErrorExpr{SpanVal: e.Span()}
	}
}

func unaryResultType(op token.OperatorID, operand Type) Type {
	switch op {
	case token.OpNot:
		return TBool
	case token.OpSub, token.OpNeg:
		return operand
	default:
		return Unknown
	}
}

func binaryResultType(op token.OperatorID, left, right Type) Type {
	switch op {
	case token.OpEq, token.OpNeq, token.OpStrictEq, token.OpStrictNeq,
		token.OpLt, token.OpGt, token.OpLte, token.OpGte, token.OpAnd, token.OpOr:
		return TBool
	case token.OpAdd, token.OpSub, token.OpMul, token.OpDiv, token.OpMod, token.OpPow:
		if left == TFloat || right == TFloat {
			return TFloat
		}
		if left == TInt && right == TInt {
			return TInt
		}
		if left == TString && right == TString && op == token.OpAdd {
			return TString
		}
		return Unknown
	default:
		return Unknown
	}
}
