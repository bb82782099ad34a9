package lexer

import (
	"testing"

	"github.com/machine-dialect/compiler/token"
)

func collectKinds(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestLexIdentifierAndUnderscoreLiterals(t *testing.T) {
	toks := collectKinds(t, "Set `x` to _42_.")
	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	wantHasIdent, wantHasInt := false, false
	for i, tok := range toks {
		if tok.Kind == token.Identifier && tok.Lexeme == "x" {
			wantHasIdent = true
		}
		if tok.Kind == token.Int && tok.Lexeme == "42" {
			wantHasInt = true
		}
		_ = i
	}
	if !wantHasIdent {
		t.Errorf("expected an Identifier token for `x`, got %v", kinds)
	}
	if !wantHasInt {
		t.Errorf("expected an Int token for _42_, got %v", kinds)
	}
}

func TestLexKeywordPhrasesAreCaseInsensitive(t *testing.T) {
	for _, src := range []string{"give back `x`.", "GIVE BACK `x`.", "Give Back `x`."} {
		toks := collectKinds(t, src)
		if toks[0].Kind != token.Keyword || toks[0].Keyword != token.KwGiveBack {
			t.Errorf("%q: got first token %v, want KwGiveBack", src, toks[0])
		}
	}
}

func TestLexOperatorPhrases(t *testing.T) {
	cases := []struct {
		phrase string
		want   token.OperatorID
	}{
		{"equals", token.OpEq},
		{"is equal to", token.OpEq},
		{"is strictly equal to", token.OpStrictEq},
		{"is greater than", token.OpGt},
		{"and", token.OpAnd},
		{"or", token.OpOr},
	}
	for _, c := range cases {
		toks := collectKinds(t, "_1_ "+c.phrase+" _2_.")
		found := false
		for _, tok := range toks {
			if tok.Kind == token.Operator && tok.Operator == c.want {
				found = true
			}
		}
		if !found {
			t.Errorf("phrase %q: expected operator %v among tokens", c.phrase, c.want)
		}
	}
}

func TestLexBlockMarkerDepth(t *testing.T) {
	toks := collectKinds(t, "> > Set `x` to _1_.")
	if toks[0].Kind != token.BlockMarker || toks[0].Depth != 2 {
		t.Errorf("got %v, want a depth-2 BlockMarker", toks[0])
	}
}

func TestLexEmptyAndBooleanLiterals(t *testing.T) {
	toks := collectKinds(t, "_empty_ _true_ _false_")
	if toks[0].Kind != token.Empty {
		t.Errorf("got %v, want Empty", toks[0])
	}
	if toks[1].Kind != token.Boolean || toks[1].Lexeme != "true" {
		t.Errorf("got %v, want Boolean true", toks[1])
	}
	if toks[2].Kind != token.Boolean || toks[2].Lexeme != "false" {
		t.Errorf("got %v, want Boolean false", toks[2])
	}
}

func TestLexEOFIsTerminal(t *testing.T) {
	toks := collectKinds(t, "")
	if len(toks) != 1 || toks[0].Kind != token.EOF {
		t.Errorf("got %v, want a single EOF token", toks)
	}
}
