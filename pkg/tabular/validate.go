package tabular

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/models"
)

// Validate checks a frame against a declared raw schema. Validation is
// all-or-nothing: the first violated check aborts with a descriptive error
// and nothing is coerced or dropped. Missing required columns are reported
// together in one error.
func Validate(f *Frame, schema models.RawSchema) error {
	// The entity id column satisfies the schema by construction: a frame
	// cannot be built from a batch missing it, and its values were already
	// required non-nil per row.
	var missing []string
	for _, required := range schema.RequiredColumns {
		if required == f.EntityColumn() {
			continue
		}
		if !f.HasColumn(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing required columns: %s", apperrors.ErrSchema, strings.Join(missing, ", "))
	}

	// Deterministic check order across runs.
	declared := make([]string, 0, len(schema.ColumnTypes))
	for name := range schema.ColumnTypes {
		declared = append(declared, name)
	}
	sort.Strings(declared)

	for _, name := range declared {
		if name == f.EntityColumn() {
			continue
		}
		values, ok := f.Column(name)
		if !ok {
			continue
		}
		switch schema.ColumnTypes[name] {
		case models.ColumnTypeNumeric:
			if err := checkNumericColumn(name, values); err != nil {
				return err
			}
		case models.ColumnTypeString:
			if err := checkStringColumn(name, values); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: column %q declares unknown type %q", apperrors.ErrSchema, name, schema.ColumnTypes[name])
		}
	}

	return nil
}

// checkNumericColumn requires every present value to be numeric-coercible.
// Numeric strings do not pass: the contract is about value types, not
// parseable text.
func checkNumericColumn(name string, values []any) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		if !IsNumeric(v) {
			return fmt.Errorf("%w: column %q expected numeric type, got %T", apperrors.ErrSchema, name, v)
		}
	}
	return nil
}

// checkStringColumn accepts strings and composite (object-like) values.
// A column whose present values are all plain numerics or booleans is a
// declared-type violation; mixed columns pass as heterogeneous data.
func checkStringColumn(name string, values []any) error {
	sawValue := false
	allPlain := true
	for _, v := range values {
		if v == nil {
			continue
		}
		sawValue = true
		switch v.(type) {
		case bool:
		default:
			if !IsNumeric(v) {
				allPlain = false
			}
		}
	}
	if sawValue && allPlain {
		return fmt.Errorf("%w: column %q expected string type, got numeric data", apperrors.ErrSchema, name)
	}
	return nil
}

// IsNumeric reports whether a value is numeric-coercible.
func IsNumeric(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	default:
		return false
	}
}

// AsFloat converts a numeric-coercible value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
