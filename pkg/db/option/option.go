// Package option provides typed query building blocks consumed by the
// generic repository, replacing ad-hoc string concatenation in callers.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

// Condition is a single typed filter applied to a column.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type conditionOption struct {
	cond Condition
}

func (o conditionOption) Apply(db *gorm.DB) *gorm.DB {
	field := sanitizeField(o.cond.Field)
	if field == "" {
		return db
	}
	if o.cond.Operator == IN {
		return db.Where(fmt.Sprintf("%s IN (?)", field), o.cond.Value)
	}
	return db.Where(fmt.Sprintf("%s %s ?", field, o.cond.Operator), o.cond.Value)
}

// ApplyOperator builds a QueryOption from a typed Condition.
func ApplyOperator(cond Condition) QueryOption {
	return conditionOption{cond: cond}
}

// QuerySortBy restricts ordering to an allow-listed set of columns.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

type sortOption struct {
	sort QuerySortBy
}

func (o sortOption) Apply(db *gorm.DB) *gorm.DB {
	field := sanitizeField(o.sort.Field)
	if field == "" || (o.sort.Allow != nil && !o.sort.Allow[field]) {
		return db
	}
	dir := "ASC"
	if o.sort.Desc {
		dir = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", field, dir))
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return sortOption{sort: sort}
}

type limitOption struct {
	limit  int
	offset int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	if o.limit > 0 {
		db = db.Limit(o.limit)
	}
	if o.offset > 0 {
		db = db.Offset(o.offset)
	}
	return db
}

func WithLimit(limit, offset int) QueryOption {
	return limitOption{limit: limit, offset: offset}
}

func sanitizeField(field string) string {
	field = strings.TrimSpace(field)
	for _, r := range field {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			continue
		}
		return ""
	}
	return field
}
