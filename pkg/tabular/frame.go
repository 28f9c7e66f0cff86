package tabular

import (
	"fmt"
	"sort"

	"github.com/featureplane/feature-engine/pkg/apperrors"
)

// Frame is a column-oriented view over a batch of row records, indexed by
// entity identity. Column slices are row-aligned: every column has one slot
// per row, nil where the record omitted the column.
type Frame struct {
	entityColumn string
	entities     []string
	columns      map[string][]any
}

// Group is the set of row indexes belonging to one entity, in submission order.
type Group struct {
	Entity string
	Rows   []int
}

// NewFrame builds a Frame from row records keyed by column name. The entity
// id column must be present and non-nil in every record; its values are
// rendered as strings and removed from the data columns.
func NewFrame(records []map[string]any, entityIDColumn string) (*Frame, error) {
	if entityIDColumn == "" {
		return nil, fmt.Errorf("%w: entity id column not specified", apperrors.ErrSchema)
	}

	// Union of column names across all records.
	columnSet := make(map[string]struct{})
	for _, record := range records {
		for name := range record {
			if name != entityIDColumn {
				columnSet[name] = struct{}{}
			}
		}
	}

	f := &Frame{
		entityColumn: entityIDColumn,
		entities:     make([]string, 0, len(records)),
		columns:      make(map[string][]any, len(columnSet)),
	}
	for name := range columnSet {
		f.columns[name] = make([]any, 0, len(records))
	}

	for i, record := range records {
		entity, ok := record[entityIDColumn]
		if !ok || entity == nil {
			return nil, fmt.Errorf("%w: entity id column %q not found in record %d", apperrors.ErrSchema, entityIDColumn, i)
		}
		f.entities = append(f.entities, fmt.Sprint(entity))

		for name := range f.columns {
			value, present := record[name]
			if !present {
				value = nil
			}
			f.columns[name] = append(f.columns[name], value)
		}
	}

	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.entities)
}

// Columns returns the data column names in sorted order.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.columns))
	for name := range f.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasColumn reports whether the frame contains the named data column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the row-aligned values of the named column.
func (f *Frame) Column(name string) ([]any, bool) {
	values, ok := f.columns[name]
	return values, ok
}

// EntityColumn returns the name of the column the frame was indexed by. The
// column is not part of the data columns but counts as present: every row was
// required to carry it when the frame was built.
func (f *Frame) EntityColumn() string {
	return f.entityColumn
}

// Entity returns the entity id of the given row.
func (f *Frame) Entity(row int) string {
	return f.entities[row]
}

// Groups returns row indexes grouped by entity, in first-appearance order.
func (f *Frame) Groups() []Group {
	index := make(map[string]int, len(f.entities))
	groups := make([]Group, 0, len(f.entities))
	for row, entity := range f.entities {
		at, seen := index[entity]
		if !seen {
			index[entity] = len(groups)
			groups = append(groups, Group{Entity: entity})
			at = len(groups) - 1
		}
		groups[at].Rows = append(groups[at].Rows, row)
	}
	return groups
}
