package suggest

import "context"

// Suggester defines the interface contract for coaching suggestion services.
type Suggester interface {
	Suggest(ctx context.Context, prompt string) (string, error)
	ModelName() string
}
