package query

import (
	"context"
	"errors"

	"github.com/careslot/careslot/pkg/pagination"
)

// ErrZeroLimit rejects expressions whose window would divide by zero when
// computing total pages. Builders never produce one; hand-built expressions
// might.
var ErrZeroLimit = errors.New("query: page limit must be positive")

// Store is the abstract record store an expression executes against.
// Count and FindMany are independent reads; a small staleness window between
// them is accepted.
type Store interface {
	Count(ctx context.Context, expr *Expression) (int, error)
	FindMany(ctx context.Context, expr *Expression) (interface{}, error)
}

// Result is the paginated envelope returned to callers.
type Result struct {
	Data interface{}     `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// Execute runs the builder's count and fetch expressions against the store
// and assembles the page envelope.
func Execute(ctx context.Context, b *Builder, store Store) (*Result, error) {
	expr := b.Expression()
	if expr.Page.Limit <= 0 {
		return nil, ErrZeroLimit
	}

	total, err := store.Count(ctx, b.CountExpression())
	if err != nil {
		return nil, err
	}
	data, err := store.FindMany(ctx, expr)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data: data,
		Meta: pagination.NewMeta(expr.Page.Page, expr.Page.Limit, total),
	}, nil
}
