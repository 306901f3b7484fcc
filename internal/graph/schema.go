package graph

import (
	"context"
	_ "embed"
	"fmt"

	"notes-api/pkg/logger"

	"github.com/graph-gophers/graphql-go"
)

// SchemaSDL is the GraphQL schema served on /api.
//
//go:embed schema.graphql
var SchemaSDL string

const maxParallelism = 10

// NewSchema binds the resolver to SchemaSDL. The depth rule is enforced by
// the engine's own validation pass, so rules must be the same value given
// to NewGate.
func NewSchema(r *Resolver, rules Rules) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(SchemaSDL, r,
		graphql.MaxDepth(rules.MaxDepth),
		graphql.MaxParallelism(maxParallelism),
		graphql.Logger(panicLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return schema, nil
}

// panicLogger routes recovered resolver panics to the request logger.
type panicLogger struct{}

func (panicLogger) LogPanic(ctx context.Context, value interface{}) {
	logger.From(ctx).Error("graphql resolver panic", "panic", fmt.Sprint(value))
}
