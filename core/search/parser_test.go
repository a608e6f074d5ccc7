package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleCompare(t *testing.T) {
	expr, err := Parse(`upnp:artist="King Krule"`)
	require.NoError(t, err)
	cmp, ok := expr.(*CompareExpr)
	require.True(t, ok)
	assert.Equal(t, "upnp:artist", cmp.Property)
	assert.Equal(t, "=", cmp.Op)
	assert.Equal(t, "King Krule", cmp.Value)
}

func TestParseDerivedFromAndCompare(t *testing.T) {
	expr, err := Parse(`upnp:class derivedfrom "object.item.audioItem" and upnp:artist="King Krule"`)
	require.NoError(t, err)
	and, ok := expr.(*AndExpr)
	require.True(t, ok)
	require.Len(t, and.Terms, 2)
	derived, ok := and.Terms[0].(*StringOpExpr)
	require.True(t, ok)
	assert.Equal(t, "derivedfrom", derived.Op)
	assert.Equal(t, "object.item.audioItem", derived.Value)
}

func TestParseOrBindsLooserThanAnd(t *testing.T) {
	expr, err := Parse(`@id="1" and @id="2" or @id="3"`)
	require.NoError(t, err)
	or, ok := expr.(*OrExpr)
	require.True(t, ok)
	require.Len(t, or.Terms, 2)
	_, ok = or.Terms[0].(*AndExpr)
	assert.True(t, ok)
}

func TestParseParenGroup(t *testing.T) {
	expr, err := Parse(`(@id="1" or @id="2") and upnp:class exists true`)
	require.NoError(t, err)
	and, ok := expr.(*AndExpr)
	require.True(t, ok)
	_, ok = and.Terms[0].(*GroupExpr)
	assert.True(t, ok)
}

func TestParseExists(t *testing.T) {
	expr, err := Parse(`res@size exists false`)
	require.NoError(t, err)
	ex, ok := expr.(*ExistsExpr)
	require.True(t, ok)
	assert.False(t, ex.Exists)
}

func TestParseRejectsUnterminatedString(t *testing.T) {
	_, err := Parse(`dc:title contains "abc`)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseRejectsBadToken(t *testing.T) {
	_, err := Parse(`dc:title ~~ "x"`)
	require.Error(t, err)
}

func TestCompileLivePredicateAndArgs(t *testing.T) {
	w, err := Compile(`upnp:artist="King Krule"`, DefaultMapper, LiveEmitter{})
	require.NoError(t, err)
	// spec §4.F Lowering, scenarios S3/S4: metadata comparisons conjoin a
	// property-name test with the value test rather than hiding the key in
	// the join.
	assert.Contains(t, w.SQL, "m.meta_key='upnp:artist'")
	assert.Contains(t, w.SQL, "LOWER(m.meta_value) = LOWER(?)")
	assert.Equal(t, []any{"King Krule"}, w.Args)
	require.Len(t, w.Joins, 1)
	assert.Contains(t, w.Joins[0], "upnp:artist")
}

func TestCompileDerivedFromAndCompareAccumulatesJoins(t *testing.T) {
	w, err := Compile(`upnp:class derivedfrom "object.item.audioItem" and upnp:artist="King Krule"`, DefaultMapper, LiveEmitter{})
	require.NoError(t, err)
	assert.Contains(t, w.SQL, " AND ")
	assert.Len(t, w.Joins, 1) // upnp:class is a first-class object column, no join needed
}

func TestCompileUnknownPropertyErrors(t *testing.T) {
	_, err := Compile(`totally:unknown="x"`, DefaultMapper, LiveEmitter{})
	assert.Error(t, err)
}

func TestCompileEmptyCriteria(t *testing.T) {
	w, err := Compile("", DefaultMapper, LiveEmitter{})
	require.NoError(t, err)
	assert.Equal(t, "", w.SQL)
}

func TestDebugEmitterInlinesValues(t *testing.T) {
	w, err := Compile(`dc:title contains "foo"`, DefaultMapper, DebugEmitter{})
	require.NoError(t, err)
	assert.Contains(t, w.SQL, "'foo'")
}

func TestCompileDynamicTokenLast7(t *testing.T) {
	w, err := Compile(`last_updated>="@last7"`, DefaultMapper, LiveEmitter{})
	require.NoError(t, err)
	require.Len(t, w.Args, 1)
	assert.NotEqual(t, "@last7", w.Args[0])
}

func TestCompileSortDefaultAscending(t *testing.T) {
	s := CompileSort("dc:title", DefaultMapper)
	assert.Equal(t, "o.title ASC", s.OrderBy)
}

func TestCompileSortDescending(t *testing.T) {
	s := CompileSort("-dc:title", DefaultMapper)
	assert.Equal(t, "o.title DESC", s.OrderBy)
}

func TestCompileSortMultiColumnExpandsBothTerms(t *testing.T) {
	s := CompileSort("upnp:originalTrackNumber", DefaultMapper)
	assert.Contains(t, s.OrderBy, "m.meta_value ASC")
	assert.Contains(t, s.OrderBy, "m2.meta_value ASC")
}

func TestCompileSortDropsUnknownProperty(t *testing.T) {
	s := CompileSort("totally:unknown,dc:title", DefaultMapper)
	assert.Equal(t, "o.title ASC", s.OrderBy)
}

func TestCompileSortEmptyCriteria(t *testing.T) {
	s := CompileSort("", DefaultMapper)
	assert.Equal(t, "", s.OrderBy)
	assert.Empty(t, s.Joins)
}
