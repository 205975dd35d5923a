package recipe

import "errors"

var (
	// ErrRecipeNotFound indicates the recipe doesn't exist.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrInvalidInput indicates invalid recipe input.
	ErrInvalidInput = errors.New("invalid recipe input")
	// ErrInUse indicates batches still reference the recipe.
	ErrInUse = errors.New("recipe is used by existing batches")
)
