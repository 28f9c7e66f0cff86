package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/tabular"
)

func computeOver(t *testing.T, logic string, records []map[string]any) (Series, error) {
	t.Helper()
	frame, err := tabular.NewFrame(records, "id")
	require.NoError(t, err)
	return New(Options{}).Compute(context.Background(), logic, frame)
}

func asMap(s Series) map[string]any {
	out := make(map[string]any, len(s))
	for _, entry := range s {
		out[entry.EntityID] = entry.Value
	}
	return out
}

func TestCompute_SumGroupedByEntity(t *testing.T) {
	series, err := computeOver(t, "result = sum(amount)", []map[string]any{
		{"id": "x", "amount": 5.0},
		{"id": "x", "amount": 7.0},
		{"id": "y", "amount": 3.0},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"x": 12.0, "y": 3.0}, asMap(series))
	// First-appearance entity order is preserved
	assert.Equal(t, "x", series[0].EntityID)
	assert.Equal(t, "y", series[1].EntityID)
}

func TestCompute_IntermediateBindings(t *testing.T) {
	logic := `
# average order size with a floor
avg = sum(amount) / count()
result = if(avg < 2, 2, avg)
`
	series, err := computeOver(t, logic, []map[string]any{
		{"id": "x", "amount": 5.0},
		{"id": "x", "amount": 7.0},
		{"id": "y", "amount": 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 6.0, "y": 2.0}, asMap(series))
}

func TestCompute_AggregateFunctions(t *testing.T) {
	records := []map[string]any{
		{"id": "x", "v": 4.0},
		{"id": "x", "v": nil},
		{"id": "x", "v": 10.0},
	}

	tests := []struct {
		logic string
		want  any
	}{
		{"result = sum(v)", 14.0},
		{"result = mean(v)", 7.0},
		{"result = min(v)", 4.0},
		{"result = max(v)", 10.0},
		{"result = count(v)", 2.0},
		{"result = count()", 3.0},
		{"result = first(v)", 4.0},
		{"result = last(v)", 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.logic, func(t *testing.T) {
			series, err := computeOver(t, tt.logic, records)
			require.NoError(t, err)
			assert.Equal(t, tt.want, series[0].Value)
		})
	}
}

func TestCompute_NonAggregatedReducesLastWins(t *testing.T) {
	series, err := computeOver(t, "result = amount * 2", []map[string]any{
		{"id": "x", "amount": 5.0},
		{"id": "x", "amount": 7.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 14.0, series[0].Value)
}

func TestCompute_ScalarHelpers(t *testing.T) {
	records := []map[string]any{
		{"id": "x", "v": -2.6, "label": "a", "fallback": "none"},
	}

	tests := []struct {
		logic string
		want  any
	}{
		{"result = abs(v)", 2.6},
		{"result = floor(v)", -3.0},
		{"result = ceil(v)", -2.0},
		{"result = round(v)", -3.0},
		{"result = round(v, 1)", -2.6},
		{"result = coalesce(missing_col, fallback)", "none"},
		{"result = concat(label, '-', 'suffix')", "a-suffix"},
		{"result = if(v < 0, 'neg', 'pos')", "neg"},
	}
	for _, tt := range tests {
		t.Run(tt.logic, func(t *testing.T) {
			records[0]["missing_col"] = nil
			series, err := computeOver(t, tt.logic, records)
			require.NoError(t, err)
			if f, ok := tt.want.(float64); ok {
				assert.InDelta(t, f, series[0].Value, 1e-9)
			} else {
				assert.Equal(t, tt.want, series[0].Value)
			}
		})
	}
}

func TestCompute_CompositeValuesPassThrough(t *testing.T) {
	series, err := computeOver(t, "result = last(attrs)", []map[string]any{
		{"id": "x", "attrs": map[string]any{"a": 1.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, series[0].Value)
}

func TestCompute_Failures(t *testing.T) {
	records := []map[string]any{
		{"id": "x", "amount": 5.0, "zero": 0.0},
	}

	tests := []struct {
		name    string
		logic   string
		message string
	}{
		{"missing result binding", "total = sum(amount)", `must assign a value to "result"`},
		{"empty program", "  \n# only a comment\n", "empty"},
		{"unknown column", "result = sum(missing)", `unknown name "missing"`},
		{"unknown function", "result = median(amount)", `unknown function "median"`},
		{"wrong arity", "result = sum(amount, amount)", "takes exactly 1 argument"},
		{"division by zero", "result = sum(amount) / sum(zero)", "division by zero"},
		{"non-numeric arithmetic", "result = sum(amount) + 'x'", "requires numeric operands"},
		{"parse error", "result = sum(amount", "expected ')'"},
		{"statement shape", "sum(amount)", "expected assignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := computeOver(t, tt.logic, records)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrComputation), "want ErrComputation, got %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCompute_StepBudget(t *testing.T) {
	frame, err := tabular.NewFrame([]map[string]any{
		{"id": "x", "amount": 1.0},
		{"id": "x", "amount": 2.0},
		{"id": "x", "amount": 3.0},
	}, "id")
	require.NoError(t, err)

	sb := New(Options{MaxSteps: 4})
	_, err = sb.Compute(context.Background(), "result = sum(amount) + mean(amount)", frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrComputation))
	assert.Contains(t, err.Error(), "evaluation budget of 4 steps exceeded")
}

func TestCompute_CanceledContext(t *testing.T) {
	records := make([]map[string]any, 3000)
	for i := range records {
		records[i] = map[string]any{"id": "x", "amount": float64(i)}
	}
	frame, err := tabular.NewFrame(records, "id")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(Options{}).Compute(ctx, "result = amount * 2", frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrComputation))
	assert.Contains(t, err.Error(), "execution budget exhausted")
}

func TestCompute_NumericEntityIDs(t *testing.T) {
	series, err := computeOver(t, "result = sum(amount)", []map[string]any{
		{"id": 1.0, "amount": 2.0},
		{"id": 1.0, "amount": 3.0},
	})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "1", series[0].EntityID)
	assert.Equal(t, 5.0, series[0].Value)
}

func ExampleSandbox_Compute() {
	frame, _ := tabular.NewFrame([]map[string]any{
		{"id": "x", "amount": 5.0},
		{"id": "x", "amount": 7.0},
	}, "id")

	series, _ := New(Options{}).Compute(context.Background(), "result = sum(amount)", frame)
	fmt.Println(series[0].EntityID, series[0].Value)
	// Output: x 12
}
