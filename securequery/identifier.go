package securequery

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	bareIdentifier      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	qualifiedIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
)

var (
	ErrIdentifier   = errors.New("not a SQL identifier")
	ErrSortSyntax   = errors.New("want column or column ASC|DESC")
	ErrNotSortable  = errors.New("column is not sortable")
	ErrSortDirection = errors.New("direction must be ASC or DESC")
)

// FragmentError rejects a client-influenced piece of SQL. Value is the
// offending input, never interpolated into a query.
type FragmentError struct {
	Field string
	Value string
	Err   error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FragmentError) Unwrap() error { return e.Err }

func ValidateIdentifier(field, name string) error {
	if bareIdentifier.MatchString(name) {
		return nil
	}
	return &FragmentError{Field: field, Value: name, Err: ErrIdentifier}
}

// ValidateOrderBy accepts a comma separated list such as
// "created_at DESC, title". A nil allowed set only checks syntax.
func ValidateOrderBy(orderBy string, allowed map[string]bool) error {
	if strings.TrimSpace(orderBy) == "" {
		return nil
	}
	for term := range strings.SplitSeq(orderBy, ",") {
		if err := validateSortTerm(strings.TrimSpace(term), allowed); err != nil {
			return &FragmentError{Field: "order_by", Value: term, Err: err}
		}
	}
	return nil
}

func validateSortTerm(term string, allowed map[string]bool) error {
	column, direction, _ := strings.Cut(term, " ")
	direction = strings.TrimSpace(direction)
	switch {
	case column == "" || strings.ContainsAny(direction, " \t"):
		return ErrSortSyntax
	case !qualifiedIdentifier.MatchString(column):
		return ErrIdentifier
	case allowed != nil && !allowed[strings.ToLower(column)]:
		return ErrNotSortable
	}
	switch strings.ToUpper(direction) {
	case "", "ASC", "DESC":
		return nil
	}
	return ErrSortDirection
}
