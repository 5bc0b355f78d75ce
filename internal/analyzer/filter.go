package analyzer

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
)

// ErrFilterEvaluation is the kind of every FilterError.
var ErrFilterEvaluation = errors.New("filter evaluation failed")

// FilterError reports an expression that could not be evaluated for a data point.
type FilterError struct {
	Expr string
	Err  error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrFilterEvaluation, e.Expr, e.Err)
}

func (e *FilterError) Is(target error) bool {
	return target == ErrFilterEvaluation
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// Filter is a compiled CEL predicate over the fields of an occurrence or of
// a span type. Expressions run in the CEL sandbox: they can only read the
// declared variables.
type Filter struct {
	expr string
	prg  cel.Program
}

// NewOccurrenceFilter compiles a predicate over a single occurrence. The
// variables are name, spanType, duration, startTime, endTime (all durations
// and times as doubles) and data, a map of the span's attributes.
//
//	duration > 2.0 && data.route != "/health"
func NewOccurrenceFilter(expr string) (*Filter, error) {
	return compile(expr,
		cel.Variable("name", cel.StringType),
		cel.Variable("spanType", cel.StringType),
		cel.Variable("duration", cel.DoubleType),
		cel.Variable("startTime", cel.DoubleType),
		cel.Variable("endTime", cel.DoubleType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewBucketFilter compiles a predicate over the aggregates of a span type:
// name, calls (int), total, avg, min and max (doubles).
func NewBucketFilter(expr string) (*Filter, error) {
	return compile(expr,
		cel.Variable("name", cel.StringType),
		cel.Variable("calls", cel.IntType),
		cel.Variable("total", cel.DoubleType),
		cel.Variable("avg", cel.DoubleType),
		cel.Variable("min", cel.DoubleType),
		cel.Variable("max", cel.DoubleType),
	)
}

func compile(expr string, vars ...cel.EnvOption) (*Filter, error) {
	opts := append([]cel.EnvOption{cel.CrossTypeNumericComparisons(true)}, vars...)
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Keep evaluates the filter. Only an explicit false drops the data point;
// when evaluation fails Keep returns true together with a *FilterError.
func (f *Filter) Keep(vars map[string]any) (bool, error) {
	out, _, err := f.prg.Eval(vars)
	if err != nil {
		return true, &FilterError{Expr: f.expr, Err: err}
	}
	b, ok := out.Value().(bool)
	if !ok {
		return true, &FilterError{Expr: f.expr, Err: fmt.Errorf("result %v is not a bool", out.Value())}
	}
	return b, nil
}

func occurrenceVars(o Occurrence) map[string]any {
	data := o.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"name":      o.Name,
		"spanType":  o.Type,
		"duration":  o.Duration,
		"startTime": o.StartTime,
		"endTime":   o.EndTime,
		"data":      data,
	}
}

func bucketVars(st *SpanStats) map[string]any {
	return map[string]any{
		"name":  st.Name,
		"calls": int64(st.Calls),
		"total": st.TotalDuration,
		"avg":   st.AvgDuration,
		"min":   st.Min.Duration,
		"max":   st.Max.Duration,
	}
}
