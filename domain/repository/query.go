// Package repository defines store-agnostic query options shared by the
// catalog, rating and profile stores.
package repository

import "fmt"

// Option applies a modification to a Query.
type Option func(Query) Query

// Operator is the comparison applied by a Condition.
type Operator int

// Operator values.
const (
	OpEqual Operator = iota
	OpIn
	OpNotIn
	OpGreaterThanOrEqual
	OpIsNotNull
)

// String returns the SQL representation of the operator.
func (o Operator) String() string {
	switch o {
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpGreaterThanOrEqual:
		return ">="
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "="
	}
}

// Query holds conditions, ordering, and pagination for store lookups.
type Query struct {
	conditions []Condition
	orders     []Order
	limit      int
	offset     int
}

// Build creates a Query from a set of options.
func Build(options ...Option) Query {
	q := Query{}
	for _, opt := range options {
		q = opt(q)
	}
	return q
}

// Conditions returns the query conditions.
func (q Query) Conditions() []Condition {
	result := make([]Condition, len(q.conditions))
	copy(result, q.conditions)
	return result
}

// Orders returns the query ordering specifications.
func (q Query) Orders() []Order {
	result := make([]Order, len(q.orders))
	copy(result, q.orders)
	return result
}

// LimitValue returns the limit (0 means no limit).
func (q Query) LimitValue() int {
	return q.limit
}

// OffsetValue returns the offset.
func (q Query) OffsetValue() int {
	return q.offset
}

// Condition represents a single query condition.
type Condition struct {
	field    string
	operator Operator
	value    any
}

// Field returns the condition field name.
func (c Condition) Field() string { return c.field }

// Operator returns the comparison operator.
func (c Condition) Operator() Operator { return c.operator }

// Value returns the condition value.
func (c Condition) Value() any { return c.value }

// String returns a readable representation.
func (c Condition) String() string {
	if c.operator == OpIsNotNull {
		return fmt.Sprintf("%s %s", c.field, c.operator)
	}
	return fmt.Sprintf("%s %s %v", c.field, c.operator, c.value)
}

// Order represents a sort specification.
type Order struct {
	field     string
	ascending bool
}

// Field returns the order field name.
func (o Order) Field() string { return o.field }

// Ascending returns true for ASC, false for DESC.
func (o Order) Ascending() bool { return o.ascending }

func withOp(field string, op Operator, value any) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, Condition{field: field, operator: op, value: value})
		return q
	}
}

// WithCondition adds a field = value equality condition.
// Domain packages use this to define their own typed options.
func WithCondition(field string, value any) Option {
	return withOp(field, OpEqual, value)
}

// WithConditionIn adds a field IN (values) condition.
func WithConditionIn(field string, values any) Option {
	return withOp(field, OpIn, values)
}

// WithConditionNotIn adds a field NOT IN (values) condition.
// An empty slice is ignored.
func WithConditionNotIn[T any](field string, values []T) Option {
	if len(values) == 0 {
		return func(q Query) Query { return q }
	}
	return withOp(field, OpNotIn, values)
}

// WithConditionAtLeast adds a field >= value condition.
func WithConditionAtLeast(field string, value any) Option {
	return withOp(field, OpGreaterThanOrEqual, value)
}

// WithConditionNotNull adds a field IS NOT NULL condition.
func WithConditionNotNull(field string) Option {
	return withOp(field, OpIsNotNull, nil)
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) Option {
	return func(q Query) Query {
		q.limit = n
		return q
	}
}

// WithOffset sets the result offset.
func WithOffset(n int) Option {
	return func(q Query) Query {
		q.offset = n
		return q
	}
}

// WithOrderAsc adds ascending ordering on a field.
func WithOrderAsc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: true})
		return q
	}
}

// WithOrderDesc adds descending ordering on a field.
func WithOrderDesc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: false})
		return q
	}
}
