package lex

import (
	"testing"

	"github.com/marnanel/mex/internal/catcode"
	"github.com/marnanel/mex/internal/source"
	"github.com/marnanel/mex/internal/token"
	"github.com/stretchr/testify/require"
)

func tokenise(t *testing.T, input string) []token.Token {
	t.Helper()
	src := source.New("test", input)
	cats := catcode.NewDefaultTable()
	tk := New(src, cats, true)

	var out []token.Token
	for {
		tok, ok, err := tk.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, tok)
	}
	return out
}

func TestControlWord(t *testing.T) {
	toks := tokenise(t, `\hello world`)
	require.Len(t, toks, 6)
	require.Equal(t, token.Control, toks[0].Kind)
	require.Equal(t, "hello", toks[0].Name)
	// Trailing spaces after a control word are absorbed; "world" follows
	// as individual Other/Letter char tokens with no leading space.
	require.Equal(t, token.Char, toks[1].Kind)
	require.Equal(t, 'w', toks[1].Ch)
}

func TestControlSymbol(t *testing.T) {
	toks := tokenise(t, `\@ x`)
	require.Len(t, toks, 3)
	require.Equal(t, token.Control, toks[0].Kind)
	require.Equal(t, "@", toks[0].Name)
	// A control symbol (non-letter) does not absorb trailing spaces.
	require.Equal(t, token.Char, toks[1].Kind)
	require.Equal(t, catcode.Space, toks[1].Cat)
}

func TestDoubleSpaceCollapses(t *testing.T) {
	toks := tokenise(t, "a   b")
	require.Len(t, toks, 3)
	require.Equal(t, 'a', toks[0].Ch)
	require.Equal(t, catcode.Space, toks[1].Cat)
	require.Equal(t, 'b', toks[2].Ch)
}

func TestBlankLineMakesPar(t *testing.T) {
	// "a" (char), end of first line while mid-line emits a space and
	// resets to line-start status, then the blank line's end-of-line
	// emits \par, then "b".
	toks := tokenise(t, "a\n\nb")
	require.Len(t, toks, 4)
	require.Equal(t, catcode.Space, toks[1].Cat)
	require.Equal(t, token.Control, toks[2].Kind)
	require.Equal(t, "par", toks[2].Name)
	require.Equal(t, 'b', toks[3].Ch)
}

func TestMidlineNewlineIsSpace(t *testing.T) {
	toks := tokenise(t, "a\nb")
	require.Len(t, toks, 3)
	require.Equal(t, token.Char, toks[1].Kind)
	require.Equal(t, catcode.Space, toks[1].Cat)
}

func TestCommentConsumesRestOfLine(t *testing.T) {
	toks := tokenise(t, "a% a comment\nb")
	require.Len(t, toks, 2)
	require.Equal(t, 'a', toks[0].Ch)
	require.Equal(t, 'b', toks[1].Ch)
}

func TestCaretHexPair(t *testing.T) {
	// ^^41 is hex 0x41 = 'A' - and must be reclassified as a letter, not
	// left with the triggering superscript's own catcode.
	toks := tokenise(t, "^^41")
	require.Len(t, toks, 1)
	require.Equal(t, 'A', toks[0].Ch)
	require.Equal(t, catcode.Letter, toks[0].Cat)
}

func TestCaretControlChar(t *testing.T) {
	// ^^! maps '!' (0x21, < 64) to chr(0x21+64) = chr(0x61) = 'a', again
	// reclassified as a letter rather than kept at catcode Superscript.
	toks := tokenise(t, "^^!")
	require.Len(t, toks, 1)
	require.Equal(t, 'a', toks[0].Ch)
	require.Equal(t, catcode.Letter, toks[0].Cat)
}

func TestCaretResolvedToInvalidCharErrorsUnderStrict(t *testing.T) {
	// ^^? maps '?' (0x3f, < 64) to chr(0x3f+64) = chr(0x7f), DEL, whose
	// default category is Invalid - re-dispatching through the catcode
	// table surfaces the same strict-mode error a literal DEL would.
	src := source.New("test", "^^?")
	cats := catcode.NewDefaultTable()
	tk := New(src, cats, true)
	_, _, err := tk.Next()
	require.Error(t, err)
}

func TestCaretNotationReclassifiesWithinWord(t *testing.T) {
	// spec.md §8 scenario 9: a^^6fb -> letters a, o, b.
	toks := tokenise(t, "a^^6fb")
	require.Len(t, toks, 3)
	for _, want := range []rune{'a', 'o', 'b'} {
		tok := toks[0]
		toks = toks[1:]
		require.Equal(t, want, tok.Ch)
		require.Equal(t, catcode.Letter, tok.Cat)
	}
}

func TestCaretNotationDoesNotRecurse(t *testing.T) {
	// ^^^^ - first pair substitutes to "^" (0x5e -64 -> 0x1e); since
	// that result isn't itself catcode Superscript, no further caret
	// matching happens on it, and the trailing unconsumed '^' is read
	// plainly as a bare superscript (nothing follows it).
	toks := tokenise(t, "^^^^")
	require.NotEmpty(t, toks)
}

func TestCaretResolvedToSuperscriptItselfDoesNotRetrigger(t *testing.T) {
	// ^^<0x1e> resolves to chr(0x1e+64) = '^' itself (catcode
	// Superscript), exercising spec.md §4.2's recursion guard: that '^'
	// must come back as a literal character, not be matched against the
	// real "^^41" that follows it.
	toks := tokenise(t, "^^\x1e^^41")
	require.Len(t, toks, 2)
	require.Equal(t, '^', toks[0].Ch)
	require.Equal(t, catcode.Superscript, toks[0].Cat)
	require.Equal(t, 'A', toks[1].Ch)
	require.Equal(t, catcode.Letter, toks[1].Cat)
}

func TestInvalidCategorySkippedWhenNotStrict(t *testing.T) {
	cats := catcode.NewDefaultTable()
	cats.Set(';', catcode.Invalid)
	src := source.New("test", "a;b")
	tk := New(src, cats, false)
	var out []token.Token
	for {
		tok, ok, err := tk.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, tok)
	}
	require.Len(t, out, 2)
	require.Equal(t, 'a', out[0].Ch)
	require.Equal(t, 'b', out[1].Ch)
}

func TestInvalidCategoryErrorsWhenStrict(t *testing.T) {
	cats := catcode.NewDefaultTable()
	cats.Set(';', catcode.Invalid)
	src := source.New("test", "a;b")
	tk := New(src, cats, true)
	_, _, err := tk.Next()
	require.NoError(t, err)
	_, _, err = tk.Next()
	require.Error(t, err)
}

func TestCatcodeMutationTakesEffectImmediately(t *testing.T) {
	cats := catcode.NewDefaultTable()
	src := source.New("test", "a;b")
	tk := New(src, cats, true)
	tok, _, err := tk.Next()
	require.NoError(t, err)
	require.Equal(t, 'a', tok.Ch)

	cats.Set(';', catcode.Comment)

	tok, _, err = tk.Next()
	require.NoError(t, err)
	require.Equal(t, 'b', tok.Ch)
}

func TestActiveCharacter(t *testing.T) {
	cats := catcode.NewDefaultTable()
	cats.Set('~', catcode.Active)
	src := source.New("test", "~")
	tk := New(src, cats, true)
	tok, ok, err := tk.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, token.ActiveChar, tok.Kind)
	require.Equal(t, '~', tok.Ch)
}
