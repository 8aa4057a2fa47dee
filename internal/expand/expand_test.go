package expand

import (
	"testing"

	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/source"
	"github.com/marnanel/mex/internal/state"
	"github.com/marnanel/mex/internal/token"
	"github.com/stretchr/testify/require"
)

func newExpander(t *testing.T, input string) (*Expander, *state.Document) {
	t.Helper()
	doc := state.New()
	src := source.New("test", input)
	return New(src, doc.Catcode, doc), doc
}

func drain(t *testing.T, e *Expander) []token.Token {
	t.Helper()
	var out []token.Token
	for {
		tok, ok, err := e.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, tok)
	}
	return out
}

func charString(toks []token.Token) string {
	var out []rune
	for _, t := range toks {
		if t.Kind == token.Char {
			out = append(out, t.Ch)
		}
	}
	return string(out)
}

func TestPlainCharsPassThrough(t *testing.T) {
	e, _ := newExpander(t, "abc")
	toks := drain(t, e)
	require.Equal(t, "abc", charString(toks))
}

func TestUndefinedControlErrors(t *testing.T) {
	e, _ := newExpander(t, `\nosuchcontrol`)
	_, _, err := e.Next()
	require.Error(t, err)
}

func TestUndefinedSingleCharControlFallsBackToOther(t *testing.T) {
	e, _ := newExpander(t, `\@`)
	tok, ok, err := e.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, token.Char, tok.Kind)
	require.Equal(t, '@', tok.Ch)
}

func TestGroupOpensAndClosesDocumentScope(t *testing.T) {
	e, doc := newExpander(t, "{a}")
	toks := drain(t, e)
	require.Len(t, toks, 3)
	require.Equal(t, 0, doc.Depth())
}

func TestTooManyClosingBracesErrors(t *testing.T) {
	e, _ := newExpander(t, "}")
	_, _, err := e.Next()
	require.Error(t, err)
}

func TestSimpleMacroExpansion(t *testing.T) {
	e, doc := newExpander(t, `\greet`)
	doc.Define(`\greet`, &state.Control{
		Kind: state.KindUserMacro,
		Name: "greet",
		Macro: &state.UserMacro{
			Replacement: []state.TemplateToken{
				{Lit: token.NewChar('h', catcode.Letter, token.Location{})},
				{Lit: token.NewChar('i', catcode.Letter, token.Location{})},
			},
		},
	}, false)
	toks := drain(t, e)
	require.Equal(t, "hi", charString(toks))
}

func TestUndelimitedParameterMacro(t *testing.T) {
	// \dup#1 -> #1#1
	e, doc := newExpander(t, `\dup x`)
	doc.Define(`\dup`, &state.Control{
		Kind: state.KindUserMacro,
		Name: "dup",
		Macro: &state.UserMacro{
			Params: []state.TemplateToken{{IsParam: true, Param: 1}},
			Replacement: []state.TemplateToken{
				{IsParam: true, Param: 1},
				{IsParam: true, Param: 1},
			},
		},
	}, false)
	toks := drain(t, e)
	require.Equal(t, "xx", charString(toks))
}

func TestDelimitedParameterMacro(t *testing.T) {
	// \upto#1STOP -> #1, called as "\upto abSTOPc"
	stop := []token.Token{
		token.NewChar('S', catcode.Letter, token.Location{}),
		token.NewChar('T', catcode.Letter, token.Location{}),
		token.NewChar('O', catcode.Letter, token.Location{}),
		token.NewChar('P', catcode.Letter, token.Location{}),
	}
	var params []state.TemplateToken
	params = append(params, state.TemplateToken{IsParam: true, Param: 1})
	for _, s := range stop {
		params = append(params, state.TemplateToken{Lit: s})
	}

	e, doc := newExpander(t, `\upto abSTOPc`)
	doc.Define(`\upto`, &state.Control{
		Kind: state.KindUserMacro,
		Name: "upto",
		Macro: &state.UserMacro{
			Params:      params,
			Replacement: []state.TemplateToken{{IsParam: true, Param: 1}},
		},
	}, false)
	toks := drain(t, e)
	require.Equal(t, "abc", charString(toks))
}

func TestLetAliasToControl(t *testing.T) {
	e, doc := newExpander(t, `\b`)
	target := &state.Control{Kind: state.KindUserMacro, Name: "a", Macro: &state.UserMacro{
		Replacement: []state.TemplateToken{{Lit: token.NewChar('z', catcode.Letter, token.Location{})}},
	}}
	doc.Define(`\a`, target, false)
	doc.Define(`\b`, &state.Control{Kind: state.KindLetAlias, AliasTarget: target}, false)
	toks := drain(t, e)
	require.Equal(t, "z", charString(toks))
}

func TestLetAliasToToken(t *testing.T) {
	e, doc := newExpander(t, `\x`)
	tok := token.NewChar('q', catcode.Letter, token.Location{})
	doc.Define(`\x`, &state.Control{Kind: state.KindLetAlias, AliasTok: &tok}, false)
	toks := drain(t, e)
	require.Equal(t, "q", charString(toks))
}

func TestNoExpandProtectsOneStep(t *testing.T) {
	e, doc := newExpander(t, `x`)
	doc.Define(`\a`, &state.Control{Kind: state.KindUserMacro, Name: "a", Macro: &state.UserMacro{
		Replacement: []state.TemplateToken{{Lit: token.NewChar('z', catcode.Letter, token.Location{})}},
	}}, false)

	protected := token.NewControl("a", token.Location{})
	protected.NoExpand = true
	e.Push(protected)
	e.Push(token.NewChar('x', catcode.Letter, token.Location{}))

	tok, ok, err := e.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 'x', tok.Ch)

	tok, ok, err = e.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, token.Control, tok.Kind)
	require.Equal(t, "a", tok.Name)
}

func TestExpandOnceExpandsMacroButNotFurther(t *testing.T) {
	e, doc := newExpander(t, "")
	doc.Define(`\a`, &state.Control{Kind: state.KindUserMacro, Name: "a", Macro: &state.UserMacro{
		Replacement: []state.TemplateToken{{Lit: token.NewChar('z', catcode.Letter, token.Location{})}},
	}}, false)
	out, err := e.ExpandOnce(token.NewControl("a", token.Location{}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 'z', out[0].Ch)
}

func TestOuterMacroForbiddenInArgument(t *testing.T) {
	e, doc := newExpander(t, `\dup\loud`)
	doc.Define(`\dup`, &state.Control{
		Kind: state.KindUserMacro,
		Name: "dup",
		Macro: &state.UserMacro{
			Params:      []state.TemplateToken{{IsParam: true, Param: 1}},
			Replacement: []state.TemplateToken{{IsParam: true, Param: 1}},
		},
	}, false)
	doc.Define(`\loud`, &state.Control{
		Kind:         state.KindPrimitive,
		Name:         "loud",
		Capabilities: state.Capabilities{Outer: true},
		Run: func(m state.Machine, self *state.Control, callLoc token.Location) ([]token.Token, error) {
			return nil, nil
		},
	}, false)
	_, _, err := e.Next()
	require.Error(t, err)
}
