package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before it is executed. Options compose
// left to right; every condition is conjunctive.
type QueryOption func(*gorm.DB) *gorm.DB

// Operator is a SQL comparison operator usable in a Condition.
type Operator string

const (
	EQ   Operator = "="
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	LIKE Operator = "LIKE"
)

// Condition is a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a WHERE clause for the given condition.
func ApplyOperator(cond Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	}
}

// ApplySearch adds a case-insensitive LIKE over any of the given columns.
func ApplySearch(term string, columns ...string) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + term + "%"
		expr := ""
		args := make([]any, 0, len(columns))
		for i, col := range columns {
			if i > 0 {
				expr += " OR "
			}
			expr += fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", col)
			args = append(args, pattern)
		}
		return db.Where("("+expr+")", args...)
	}
}

// QuerySortBy describes an ORDER BY. Allow whitelists sortable columns so
// caller input can never inject arbitrary SQL.
type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders the result set. Columns outside the allow list fall back
// to created_at.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" || (sort.Allow != nil && !sort.Allow[column]) {
			column = "created_at"
		}
		direction := "ASC"
		if sort.OrderBy == "desc" || sort.OrderBy == "DESC" {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction))
	}
}

// WithLimit caps the number of rows returned.
func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

// Apply runs all options over the query.
func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}
