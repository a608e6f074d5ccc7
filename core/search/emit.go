package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SQLEmitter lowers one already-resolved ColumnMapping plus operator/value
// into a SQL fragment and its bind args (spec §4.F "Lowering").
type SQLEmitter interface {
	Compare(mapping ColumnMapping, op, value string) (string, []any, error)
	StringOp(mapping ColumnMapping, op, value string) (string, []any, error)
	Exists(mapping ColumnMapping, exists bool) (string, []any, error)
	DerivedFrom(mapping ColumnMapping, value string) (string, []any, error)
}

// emitContext threads the mapper, emitter and the set of JOIN fragments
// accumulated while walking the AST (spec §4.F: "the compiler also
// accumulates extra column-select and join fragments").
type emitContext struct {
	emitter SQLEmitter
	mapper  ColumnMapper
	joins   map[string]bool
}

func newEmitContext(mapper ColumnMapper, emitter SQLEmitter) *emitContext {
	return &emitContext{mapper: mapper, emitter: emitter, joins: map[string]bool{}}
}

func (e *emitContext) resolve(property string) (ColumnMapping, error) {
	mapping, ok := e.mapper.Map(property)
	if !ok {
		return ColumnMapping{}, &ParseError{Token: property, Msg: "unknown property"}
	}
	if mapping.Join != "" {
		e.joins[mapping.Join] = true
	}
	return mapping, nil
}

// LiveEmitter renders SQL with positional "?" placeholders, the form
// actually sent to storage.SearchObjects. Kept distinct from DebugEmitter
// (spec §9 open question) so a human-readable rendering is always
// available for logs/admin tooling without risking it leaking into a live
// query.
type LiveEmitter struct{}

// toSQL runs expr (a squirrel.Sqlizer built with "?" placeholders) through
// squirrel itself, the SQL builder this emitter targets.
func toSQL(expr sq.Sqlizer) (string, []any, error) {
	return expr.ToSql()
}

// metadataConjunction wraps expr with the property-name test the generic
// key/value table needs (spec §4.F Lowering, scenarios S3/S4): the row only
// counts when both its key matches the property being compared and its
// value satisfies expr, e.g.
// "(m.meta_key='upnp:artist' AND LOWER(m.meta_value) = LOWER(?))". The key is
// a fixed mapper-controlled literal (never user input), so it's embedded
// directly rather than bound as a placeholder arg.
func metadataConjunction(mapping ColumnMapping, expr string) string {
	return fmt.Sprintf("(%s='%s' AND %s)", mapping.NameColumn, mapping.PropertyName, expr)
}

func (LiveEmitter) Compare(mapping ColumnMapping, op, value string) (string, []any, error) {
	if mapping.IsMetadata {
		inner := fmt.Sprintf("LOWER(%s) %s LOWER(?)", mapping.Column, op)
		return toSQL(sq.Expr(metadataConjunction(mapping, inner), value))
	}
	return toSQL(sq.Expr(fmt.Sprintf("%s %s ?", mapping.Column, op), value))
}

func (LiveEmitter) StringOp(mapping ColumnMapping, op, value string) (string, []any, error) {
	pattern, negate, err := likePattern(op, value)
	if err != nil {
		return "", nil, err
	}
	not := ""
	if negate {
		not = "NOT "
	}
	if mapping.IsMetadata {
		inner := fmt.Sprintf("%sLOWER(%s) LIKE LOWER(?)", not, mapping.Column)
		return toSQL(sq.Expr(metadataConjunction(mapping, inner), pattern))
	}
	return toSQL(sq.Expr(fmt.Sprintf("(%sLOWER(%s) LIKE LOWER(?))", not, mapping.Column), pattern))
}

func (LiveEmitter) Exists(mapping ColumnMapping, exists bool) (string, []any, error) {
	op := "IS NOT NULL"
	if !exists {
		op = "IS NULL"
	}
	if mapping.IsMetadata {
		inner := fmt.Sprintf("%s %s", mapping.Column, op)
		return toSQL(sq.Expr(metadataConjunction(mapping, inner)))
	}
	return toSQL(sq.Expr(fmt.Sprintf("%s %s", mapping.Column, op)))
}

func (LiveEmitter) DerivedFrom(mapping ColumnMapping, value string) (string, []any, error) {
	return toSQL(sq.Expr(fmt.Sprintf("(LOWER(%s) LIKE LOWER(?))", mapping.Column), value+"%"))
}

// DebugEmitter renders a readable (but not execution-safe) SQL string with
// values inlined, for logging/admin diagnostics.
type DebugEmitter struct{}

func (DebugEmitter) Compare(mapping ColumnMapping, op, value string) (string, []any, error) {
	if mapping.IsMetadata {
		return fmt.Sprintf("%s[%s] %s %s", mapping.Column, mapping.PropertyName, op, quoteDebug(value)), nil, nil
	}
	return fmt.Sprintf("%s %s %s", mapping.Column, op, quoteDebug(value)), nil, nil
}

func (DebugEmitter) StringOp(mapping ColumnMapping, op, value string) (string, []any, error) {
	if _, _, err := likePattern(op, value); err != nil {
		return "", nil, err
	}
	if mapping.IsMetadata {
		return fmt.Sprintf("%s[%s] %s %s", mapping.Column, mapping.PropertyName, op, quoteDebug(value)), nil, nil
	}
	return fmt.Sprintf("%s %s %s", mapping.Column, op, quoteDebug(value)), nil, nil
}

func (DebugEmitter) Exists(mapping ColumnMapping, exists bool) (string, []any, error) {
	if mapping.IsMetadata {
		return fmt.Sprintf("%s[%s] exists %t", mapping.Column, mapping.PropertyName, exists), nil, nil
	}
	return fmt.Sprintf("%s exists %t", mapping.Column, exists), nil, nil
}

func (DebugEmitter) DerivedFrom(mapping ColumnMapping, value string) (string, []any, error) {
	return fmt.Sprintf("%s derivedfrom %s", mapping.Column, quoteDebug(value)), nil, nil
}

func likePattern(op, value string) (pattern string, negate bool, err error) {
	switch op {
	case "contains":
		return "%" + value + "%", false, nil
	case "doesnotcontain":
		return "%" + value + "%", true, nil
	case "startswith":
		return value + "%", false, nil
	default:
		return "", false, &ParseError{Token: op, Msg: "unsupported string operator"}
	}
}

// quoteDebug renders v as a single-quoted SQL literal for diagnostics only;
// it is never sent to a driver, so naive doubling of embedded quotes is
// sufficient.
func quoteDebug(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// resolveDynamicToken replaces "@last7" with a Unix timestamp 7 days before
// now, evaluated at lowering time (spec §4.F "Dynamic tokens").
func resolveDynamicToken(value string) string {
	if value == "@last7" {
		return strconv.FormatInt(time.Now().AddDate(0, 0, -7).Unix(), 10)
	}
	return value
}
