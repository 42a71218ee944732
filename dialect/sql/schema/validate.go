package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"

	atlas "ariga.io/atlas/sql/schema"

	"github.com/syssam/datagraph"
	dgschema "github.com/syssam/datagraph/schema"
)

// ValidationError is one difference between a declared type and its table.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the differences found by Verify. Errors would make
// queries fail; warnings are columns the types do not use.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors reports whether there are errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings reports whether there are warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the errors as configuration errors, or nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = datagraph.NewConfigError("%s", e.Error())
	}
	return datagraph.NewAggregateError(errs...)
}

// String returns a human-readable summary.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// Verify compares the types of reg with the live tables.
func (i *Inspector) Verify(ctx context.Context, reg *dgschema.Registry) (*ValidationResult, error) {
	types := reg.Types()
	tables, err := i.Tables(ctx, tableNames(types)...)
	if err != nil {
		return nil, err
	}
	return ValidateTables(reg, tables), nil
}

// ValidateTables compares the types of reg with the given tables, keyed by
// name:
//
//   - a missing table, a declared column missing from its table, a primary
//     key differing from the table's, and an association join column missing
//     on either side are errors;
//   - table columns no type declares are warnings.
func ValidateTables(reg *dgschema.Registry, tables map[string]*atlas.Table) *ValidationResult {
	result := &ValidationResult{}
	for _, t := range reg.Types() {
		tbl, ok := tables[t.Table]
		if !ok {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Table,
				Message: fmt.Sprintf("table of type %s does not exist", t.Name),
			})
			continue
		}
		validateType(t, tbl, result)
	}
	for _, t := range reg.Types() {
		for _, a := range t.Associations {
			refl, ok := reg.Reflect(t.Name, a.Name)
			if !ok || refl.Through != nil {
				continue
			}
			owner, target := tables[t.Table], tables[refl.Target.Table]
			for _, c := range refl.ParentColumns() {
				missingJoinColumn(owner, t.Table, c, t.Name+"."+a.Name, result)
			}
			for _, c := range refl.ChildColumns() {
				missingJoinColumn(target, refl.Target.Table, c, t.Name+"."+a.Name, result)
			}
		}
	}
	return result
}

func validateType(t *dgschema.Type, tbl *atlas.Table, result *ValidationResult) {
	cols := columnNames(tbl.Columns)
	for _, c := range t.Columns {
		if !slices.Contains(cols, c) {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Table,
				Column:  c,
				Message: "declared column does not exist",
			})
		}
	}
	for _, c := range cols {
		if !slices.Contains(t.Columns, c) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   t.Table,
				Column:  c,
				Message: fmt.Sprintf("column is not declared on type %s", t.Name),
			})
		}
	}
	if pk := primaryKey(tbl); len(pk) > 0 && !slices.Equal(pk, t.PrimaryKey) {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Table,
			Message: fmt.Sprintf("primary key %v of type %s differs from table key %v", t.PrimaryKey, t.Name, pk),
		})
	}
}

func missingJoinColumn(tbl *atlas.Table, table, column, assoc string, result *ValidationResult) {
	if tbl == nil {
		return
	}
	if _, ok := tbl.Column(column); ok {
		return
	}
	result.Errors = append(result.Errors, &ValidationError{
		Table:   table,
		Column:  column,
		Message: fmt.Sprintf("join column of %s does not exist", assoc),
	})
}
