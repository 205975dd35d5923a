package recipe

import "context"

// Repository provides persistence for recipes.
type Repository interface {
	Create(ctx context.Context, rec *Recipe) error
	Get(ctx context.Context, id string) (*Recipe, error)
	List(ctx context.Context) ([]Recipe, error)
	Replace(ctx context.Context, rec *Recipe) error
	Delete(ctx context.Context, id string) error
}
