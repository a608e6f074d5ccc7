package search

// Expr is a node of the parsed search criteria AST (spec §4.F grammar).
type Expr interface {
	emit(e *emitContext) (string, []any, error)
}

// AndExpr / OrExpr are left-associative n-ary conjunctions/disjunctions;
// the parser flattens consecutive same-kind operators into one node.
type AndExpr struct{ Terms []Expr }
type OrExpr struct{ Terms []Expr }

// CompareExpr is `PROPERTY COMPAREOP value`.
type CompareExpr struct {
	Property string
	Op       string // =, !=, <, <=, >, >=
	Value    string
}

// StringOpExpr is `PROPERTY STRINGOP STRING` (contains/doesnotcontain/
// startswith/derivedfrom).
type StringOpExpr struct {
	Property string
	Op       string
	Value    string
}

// ExistsExpr is `PROPERTY exists BOOLVAL`.
type ExistsExpr struct {
	Property string
	Exists   bool
}

// GroupExpr preserves parenthesisation in the rendered output.
type GroupExpr struct{ Inner Expr }

func (n *AndExpr) emit(e *emitContext) (string, []any, error) {
	return emitConjunction(e, n.Terms, " AND ")
}

func (n *OrExpr) emit(e *emitContext) (string, []any, error) {
	return emitConjunction(e, n.Terms, " OR ")
}

func emitConjunction(e *emitContext, terms []Expr, sep string) (string, []any, error) {
	var parts []string
	var args []any
	for _, t := range terms {
		sql, a, err := t.emit(e)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return joinStrings(parts, sep), args, nil
}

func (n *CompareExpr) emit(e *emitContext) (string, []any, error) {
	mapping, err := e.resolve(n.Property)
	if err != nil {
		return "", nil, err
	}
	return e.emitter.Compare(mapping, n.Op, resolveDynamicToken(n.Value))
}

func (n *StringOpExpr) emit(e *emitContext) (string, []any, error) {
	mapping, err := e.resolve(n.Property)
	if err != nil {
		return "", nil, err
	}
	if n.Op == "derivedfrom" {
		return e.emitter.DerivedFrom(mapping, n.Value)
	}
	return e.emitter.StringOp(mapping, n.Op, n.Value)
}

func (n *ExistsExpr) emit(e *emitContext) (string, []any, error) {
	mapping, err := e.resolve(n.Property)
	if err != nil {
		return "", nil, err
	}
	return e.emitter.Exists(mapping, n.Exists)
}

func (n *GroupExpr) emit(e *emitContext) (string, []any, error) {
	sql, args, err := n.Inner.emit(e)
	if err != nil {
		return "", nil, err
	}
	return "(" + sql + ")", args, nil
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
