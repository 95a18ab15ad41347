package database

import (
	"github.com/helixml/cinerag/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyOptions applies the conditions, ordering and pagination of the given
// options to a GORM session. Column names are quoted by the dialect.
func ApplyOptions(db *gorm.DB, options ...repository.Option) *gorm.DB {
	q := repository.Build(options...)

	db = applyConditions(db, q)

	for _, ord := range q.Orders() {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: ord.Field()},
			Desc:   !ord.Ascending(),
		})
	}

	if n := q.LimitValue(); n > 0 {
		db = db.Limit(n)
	}
	if n := q.OffsetValue(); n > 0 {
		db = db.Offset(n)
	}

	return db
}

// ApplyConditions applies only WHERE conditions (no limit/offset/order) for COUNT queries.
func ApplyConditions(db *gorm.DB, options ...repository.Option) *gorm.DB {
	return applyConditions(db, repository.Build(options...))
}

func applyConditions(db *gorm.DB, q repository.Query) *gorm.DB {
	for _, cond := range q.Conditions() {
		db = db.Where(conditionExpr(cond))
	}
	return db
}

func conditionExpr(cond repository.Condition) clause.Expression {
	column := clause.Column{Name: cond.Field()}

	switch cond.Operator() {
	case repository.OpIsNotNull:
		return clause.Expr{SQL: "? IS NOT NULL", Vars: []any{column}}
	case repository.OpIn:
		return clause.Expr{SQL: "? IN ?", Vars: []any{column, cond.Value()}}
	case repository.OpNotIn:
		return clause.Expr{SQL: "? NOT IN ?", Vars: []any{column, cond.Value()}}
	case repository.OpGreaterThanOrEqual:
		return clause.Gte{Column: column, Value: cond.Value()}
	default:
		return clause.Eq{Column: column, Value: cond.Value()}
	}
}
