package sandbox

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/featureplane/feature-engine/pkg/tabular"
)

// rowVec is a per-row value vector scoped to one entity group.
type rowVec []any

type evaluator struct {
	ctx      context.Context
	frame    *tabular.Frame
	maxSteps int
	steps    int
}

// run executes the program once per entity group. Each group gets a fresh
// environment; the final "result" binding, reduced per entity, becomes the
// output series.
func (e *evaluator) run(prog *program) (Series, error) {
	groups := e.frame.Groups()
	series := make(Series, 0, len(groups))

	for _, group := range groups {
		env := make(map[string]any, len(prog.statements))
		for _, stmt := range prog.statements {
			value, err := e.eval(stmt.expr, group, env)
			if err != nil {
				return nil, err
			}
			env[stmt.name] = value
		}
		series = append(series, Entry{
			EntityID: group.Entity,
			Value:    reduceLastWins(env[resultName]),
		})
	}

	return series, nil
}

// step charges one unit of the evaluation budget and periodically checks
// the deadline.
func (e *evaluator) step() error {
	e.steps++
	if e.maxSteps > 0 && e.steps > e.maxSteps {
		return fmt.Errorf("evaluation budget of %d steps exceeded", e.maxSteps)
	}
	if e.steps%1024 == 0 {
		if err := e.ctx.Err(); err != nil {
			return fmt.Errorf("execution budget exhausted: %v", err)
		}
	}
	return nil
}

func (e *evaluator) eval(n node, group tabular.Group, env map[string]any) (any, error) {
	if err := e.step(); err != nil {
		return nil, err
	}

	switch expr := n.(type) {
	case numberLit:
		return expr.value, nil
	case stringLit:
		return expr.value, nil
	case ident:
		if value, ok := env[expr.name]; ok {
			return value, nil
		}
		column, ok := e.frame.Column(expr.name)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown name %q (not a binding or input column)", expr.line, expr.name)
		}
		vec := make(rowVec, len(group.Rows))
		for i, row := range group.Rows {
			vec[i] = column[row]
		}
		return vec, nil
	case unaryExpr:
		right, err := e.eval(expr.right, group, env)
		if err != nil {
			return nil, err
		}
		return e.elementwise1(right, func(v any) (any, error) {
			f, ok := tabular.AsFloat(v)
			if !ok {
				return nil, fmt.Errorf("operator '-' requires a numeric operand, got %T", v)
			}
			return -f, nil
		})
	case binaryExpr:
		left, err := e.eval(expr.left, group, env)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(expr.right, group, env)
		if err != nil {
			return nil, err
		}
		return e.elementwise2(left, right, func(l, r any) (any, error) {
			return applyBinary(expr, l, r)
		})
	case callExpr:
		return e.evalCall(expr, group, env)
	default:
		return nil, fmt.Errorf("internal: unknown expression node %T", n)
	}
}

func applyBinary(expr binaryExpr, l, r any) (any, error) {
	switch expr.op {
	case tokPlus, tokMinus, tokStar, tokSlash:
		lf, lok := tabular.AsFloat(l)
		rf, rok := tabular.AsFloat(r)
		if !lok || !rok {
			return nil, fmt.Errorf("operator %q requires numeric operands, got %T and %T", expr.opTxt, l, r)
		}
		switch expr.op {
		case tokPlus:
			return lf + rf, nil
		case tokMinus:
			return lf - rf, nil
		case tokStar:
			return lf * rf, nil
		default:
			if rf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return lf / rf, nil
		}
	case tokEq, tokNe:
		eq, err := valuesEqual(l, r)
		if err != nil {
			return nil, err
		}
		if expr.op == tokNe {
			return !eq, nil
		}
		return eq, nil
	default: // ordered comparisons
		if lf, lok := tabular.AsFloat(l); lok {
			rf, rok := tabular.AsFloat(r)
			if !rok {
				return nil, fmt.Errorf("cannot compare %T and %T", l, r)
			}
			return compareOrdered(expr.op, lf, rf), nil
		}
		ls, lok := l.(string)
		rs, rok := r.(string)
		if !lok || !rok {
			return nil, fmt.Errorf("cannot compare %T and %T", l, r)
		}
		switch expr.op {
		case tokLt:
			return ls < rs, nil
		case tokLe:
			return ls <= rs, nil
		case tokGt:
			return ls > rs, nil
		default:
			return ls >= rs, nil
		}
	}
}

func compareOrdered(op tokenKind, l, r float64) bool {
	switch op {
	case tokLt:
		return l < r
	case tokLe:
		return l <= r
	case tokGt:
		return l > r
	default:
		return l >= r
	}
}

func valuesEqual(l, r any) (bool, error) {
	if l == nil || r == nil {
		return l == nil && r == nil, nil
	}
	if lf, ok := tabular.AsFloat(l); ok {
		rf, rok := tabular.AsFloat(r)
		return rok && lf == rf, nil
	}
	if ls, ok := l.(string); ok {
		rs, rok := r.(string)
		return rok && ls == rs, nil
	}
	if lb, ok := l.(bool); ok {
		rb, rok := r.(bool)
		return rok && lb == rb, nil
	}
	return false, fmt.Errorf("cannot compare %T and %T", l, r)
}

// elementwise1 applies fn to a scalar, or per element of a row vector.
func (e *evaluator) elementwise1(v any, fn func(any) (any, error)) (any, error) {
	vec, ok := v.(rowVec)
	if !ok {
		return fn(v)
	}
	out := make(rowVec, len(vec))
	for i, elem := range vec {
		if err := e.step(); err != nil {
			return nil, err
		}
		result, err := fn(elem)
		if err != nil {
			return nil, err
		}
		out[i] = result
	}
	return out, nil
}

// elementwise2 applies fn pairwise, broadcasting scalars against vectors.
func (e *evaluator) elementwise2(l, r any, fn func(any, any) (any, error)) (any, error) {
	lv, lIsVec := l.(rowVec)
	rv, rIsVec := r.(rowVec)

	if !lIsVec && !rIsVec {
		return fn(l, r)
	}

	n := len(lv)
	if !lIsVec {
		n = len(rv)
	}
	if lIsVec && rIsVec && len(lv) != len(rv) {
		return nil, fmt.Errorf("internal: mismatched vector lengths %d and %d", len(lv), len(rv))
	}

	out := make(rowVec, n)
	for i := 0; i < n; i++ {
		if err := e.step(); err != nil {
			return nil, err
		}
		le, re := l, r
		if lIsVec {
			le = lv[i]
		}
		if rIsVec {
			re = rv[i]
		}
		result, err := fn(le, re)
		if err != nil {
			return nil, err
		}
		out[i] = result
	}
	return out, nil
}

func (e *evaluator) evalCall(call callExpr, group tabular.Group, env map[string]any) (any, error) {
	args := make([]any, len(call.args))
	for i, argNode := range call.args {
		value, err := e.eval(argNode, group, env)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}

	switch call.fn {
	case "sum", "mean", "min", "max":
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: %s() takes exactly 1 argument, got %d", call.line, call.fn, len(args))
		}
		return e.aggregateNumeric(call.fn, e.toVec(args[0], len(group.Rows)))
	case "count":
		switch len(args) {
		case 0:
			return float64(len(group.Rows)), nil
		case 1:
			vec := e.toVec(args[0], len(group.Rows))
			n := 0
			for _, v := range vec {
				if v != nil {
					n++
				}
			}
			return float64(n), nil
		default:
			return nil, fmt.Errorf("line %d: count() takes at most 1 argument, got %d", call.line, len(args))
		}
	case "first", "last":
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: %s() takes exactly 1 argument, got %d", call.line, call.fn, len(args))
		}
		vec := e.toVec(args[0], len(group.Rows))
		if call.fn == "first" {
			for _, v := range vec {
				if v != nil {
					return v, nil
				}
			}
			return nil, nil
		}
		for i := len(vec) - 1; i >= 0; i-- {
			if vec[i] != nil {
				return vec[i], nil
			}
		}
		return nil, nil
	case "abs", "floor", "ceil":
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: %s() takes exactly 1 argument, got %d", call.line, call.fn, len(args))
		}
		return e.elementwise1(args[0], func(v any) (any, error) {
			f, ok := tabular.AsFloat(v)
			if !ok {
				return nil, fmt.Errorf("%s() requires a numeric argument, got %T", call.fn, v)
			}
			switch call.fn {
			case "abs":
				return math.Abs(f), nil
			case "floor":
				return math.Floor(f), nil
			default:
				return math.Ceil(f), nil
			}
		})
	case "round":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("line %d: round() takes 1 or 2 arguments, got %d", call.line, len(args))
		}
		digits := 0.0
		if len(args) == 2 {
			d, ok := tabular.AsFloat(args[1])
			if !ok {
				return nil, fmt.Errorf("line %d: round() digits must be numeric", call.line)
			}
			digits = d
		}
		factor := math.Pow(10, digits)
		return e.elementwise1(args[0], func(v any) (any, error) {
			f, ok := tabular.AsFloat(v)
			if !ok {
				return nil, fmt.Errorf("round() requires a numeric argument, got %T", v)
			}
			return math.Round(f*factor) / factor, nil
		})
	case "coalesce":
		if len(args) == 0 {
			return nil, fmt.Errorf("line %d: coalesce() takes at least 1 argument", call.line)
		}
		return e.elementwiseN(args, func(elems []any) (any, error) {
			for _, v := range elems {
				if v != nil {
					return v, nil
				}
			}
			return nil, nil
		})
	case "concat":
		if len(args) < 2 {
			return nil, fmt.Errorf("line %d: concat() takes at least 2 arguments", call.line)
		}
		return e.elementwiseN(args, func(elems []any) (any, error) {
			out := ""
			for _, v := range elems {
				s, err := stringify(v)
				if err != nil {
					return nil, err
				}
				out += s
			}
			return out, nil
		})
	case "if":
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: if() takes exactly 3 arguments, got %d", call.line, len(args))
		}
		return e.elementwiseN(args, func(elems []any) (any, error) {
			cond, ok := elems[0].(bool)
			if !ok {
				return nil, fmt.Errorf("if() condition must be a boolean, got %T", elems[0])
			}
			if cond {
				return elems[1], nil
			}
			return elems[2], nil
		})
	default:
		return nil, fmt.Errorf("line %d: unknown function %q", call.line, call.fn)
	}
}

// elementwiseN generalizes broadcasting over a variadic argument list.
func (e *evaluator) elementwiseN(args []any, fn func([]any) (any, error)) (any, error) {
	n := -1
	for _, a := range args {
		if vec, ok := a.(rowVec); ok {
			n = len(vec)
			break
		}
	}
	if n < 0 {
		return fn(args)
	}

	out := make(rowVec, n)
	elems := make([]any, len(args))
	for i := 0; i < n; i++ {
		if err := e.step(); err != nil {
			return nil, err
		}
		for j, a := range args {
			if vec, ok := a.(rowVec); ok {
				elems[j] = vec[i]
			} else {
				elems[j] = a
			}
		}
		result, err := fn(elems)
		if err != nil {
			return nil, err
		}
		out[i] = result
	}
	return out, nil
}

// toVec broadcasts a scalar to the group's row count.
func (e *evaluator) toVec(v any, rows int) rowVec {
	if vec, ok := v.(rowVec); ok {
		return vec
	}
	vec := make(rowVec, rows)
	for i := range vec {
		vec[i] = v
	}
	return vec
}

// aggregateNumeric reduces a vector's non-nil elements. Sum of an empty
// vector is 0; mean/min/max of an empty vector are nil.
func (e *evaluator) aggregateNumeric(fn string, vec rowVec) (any, error) {
	sum := 0.0
	count := 0
	best := 0.0
	for _, v := range vec {
		if err := e.step(); err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		f, ok := tabular.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s() requires numeric values, got %T", fn, v)
		}
		if count == 0 {
			best = f
		} else if (fn == "min" && f < best) || (fn == "max" && f > best) {
			best = f
		}
		sum += f
		count++
	}

	switch fn {
	case "sum":
		return sum, nil
	case "mean":
		if count == 0 {
			return nil, nil
		}
		return sum / float64(count), nil
	default: // min, max
		if count == 0 {
			return nil, nil
		}
		return best, nil
	}
}

// reduceLastWins collapses a per-row result to one value per entity: the
// last non-nil row value, mirroring how a series indexed by entity keeps
// the final assignment per index label.
func reduceLastWins(v any) any {
	vec, ok := v.(rowVec)
	if !ok {
		return v
	}
	for i := len(vec) - 1; i >= 0; i-- {
		if vec[i] != nil {
			return vec[i]
		}
	}
	return nil
}

func stringify(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		if f, ok := tabular.AsFloat(v); ok {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
		return "", fmt.Errorf("concat() cannot render %T", v)
	}
}
