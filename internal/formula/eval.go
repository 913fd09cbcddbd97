package formula

import (
	"strconv"
	"strings"
)

// Vars maps variable names to values visible to a formula.
type Vars map[string]float64

type env struct {
	src  string
	vars Vars
}

func (n *numberNode) eval(*env) (float64, error) { return n.v, nil }

func (n *varNode) eval(e *env) (float64, error) {
	v, ok := e.vars[n.name]
	if !ok {
		return 0, &UnresolvedVariableError{Formula: e.src, Name: n.name}
	}
	return v, nil
}

func (n *negNode) eval(e *env) (float64, error) {
	x, err := n.x.eval(e)
	if err != nil {
		return 0, err
	}
	return -x, nil
}

func (n *binaryNode) eval(e *env) (float64, error) {
	l, err := n.l.eval(e)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(e)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case tokPlus:
		return l + r, nil
	case tokMinus:
		return l - r, nil
	case tokStar:
		return l * r, nil
	default:
		if r == 0 {
			return 0, &DivisionByZeroError{Formula: e.src}
		}
		return l / r, nil
	}
}

func (n *callNode) eval(e *env) (float64, error) {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(e)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return functions[n.fn].apply(args), nil
}

// Eval evaluates the expression against vars.
func (e *Expr) Eval(vars Vars) (float64, error) {
	return e.root.eval(&env{src: e.src, vars: vars})
}

// Evaluate parses and evaluates a formula, returning a varFormula log entry
// with the referenced values and a preview of the substituted formula. The
// entry is filled as far as evaluation got, so it is useful even on error.
func Evaluate(src string, vars Vars) (float64, LogEntry, error) {
	entry := LogEntry{Type: EntryVarFormula, Formula: src}

	expr, err := Parse(src)
	if err != nil {
		return 0, entry, err
	}

	for _, name := range expr.Variables() {
		v, ok := vars[name]
		if !ok {
			return 0, entry, &UnresolvedVariableError{Formula: src, Name: name}
		}
		entry.FormulaValues = append(entry.FormulaValues, FormulaValue{Name: name, Value: v})
	}
	entry.FormulaPreview = expr.preview(vars)

	v, err := expr.Eval(vars)
	if err != nil {
		return 0, entry, err
	}
	entry.Value = &v
	return v, entry, nil
}

func (e *Expr) preview(vars Vars) string {
	var b strings.Builder
	last := 0
	for _, r := range e.refs {
		b.WriteString(e.src[last:r.pos])
		b.WriteString(FormatNumber(vars[r.name]))
		last = r.end
	}
	b.WriteString(e.src[last:])
	return b.String()
}

// FormatNumber renders v with the shortest exact representation.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
