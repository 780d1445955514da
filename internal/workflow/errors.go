package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation addresses a missing workspace, task,
	// agent or conversation (unless the engine runs with SilentNotFound).
	ErrNotFound = errors.New("not found")
	// ErrInvalid wraps every argument validation failure. Validation runs before any write.
	ErrInvalid = errors.New("invalid argument")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// notFound reports a missing entity. With SilentNotFound it returns nil so the
// calling operation finishes as a no-op.
func (e *Engine) notFound(kind, id string) error {
	if e.SilentNotFound {
		e.logger().Debug("missing entity ignored", "kind", kind, "id", id)
		return nil
	}
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
