package search

import "sort"

// CompiledWhere is the lowered form of a Search criteria string, ready to
// hand to model.Storage.SearchObjects.
type CompiledWhere struct {
	SQL   string
	Args  []any
	Joins []string // deduplicated, sorted lexically
}

// Compile parses and lowers a Search criteria string using mapper/emitter.
// A *ParseError is returned for any lexer/parser/unknown-property failure
// (spec §4.F error model; callers surface this as UPnP 402 Invalid Args).
func Compile(criteria string, mapper ColumnMapper, emitter SQLEmitter) (*CompiledWhere, error) {
	if criteria == "" {
		return &CompiledWhere{}, nil
	}
	expr, err := Parse(criteria)
	if err != nil {
		return nil, err
	}
	ctx := newEmitContext(mapper, emitter)
	sql, args, err := expr.emit(ctx)
	if err != nil {
		return nil, err
	}
	return &CompiledWhere{SQL: sql, Args: args, Joins: sortedKeys(ctx.joins)}, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
