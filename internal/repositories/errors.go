package repositories

import (
	"context"
	"log/slog"
)

// RepositoryErrorContext describes one failed repository call for logging.
type RepositoryErrorContext struct {
	Entity    string
	Operation string
	Input     map[string]any
	Err       error
}

func (c RepositoryErrorContext) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("entity", c.Entity),
		slog.String("operation", c.Operation),
	}
	if len(c.Input) > 0 {
		attrs = append(attrs, slog.Any("input", c.Input))
	}
	if c.Err != nil {
		attrs = append(attrs, slog.String("error", c.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// fail logs err once and hands it back unchanged.
func (r *Repository[T]) fail(ctx context.Context, op string, input map[string]any, err error) error {
	if err == nil {
		return nil
	}
	r.Metrics.ObserveRepositoryError(r.Binding.Name(), op)
	if r.Logger != nil {
		r.Logger.ErrorContext(ctx, "repository error", "repository", RepositoryErrorContext{
			Entity:    r.Binding.Name(),
			Operation: op,
			Input:     input,
			Err:       err,
		})
	}
	return err
}
