// Package failure defines the error kinds surfaced by the generation pipeline.
// Every stage reports failures as a *Error wrapping one of the Err* sentinels,
// so callers branch with errors.Is and still get the offending id and values.
package failure

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDegenerateInput  = errors.New("degenerate input")
	ErrGeometry         = errors.New("geometry error")
	ErrIllConditioned   = errors.New("ill-conditioned system")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrAttributeMissing = errors.New("attribute missing")
)

// NoID marks an Error that is not about a particular site or cell.
const NoID = -1

// Error carries the kind of failure plus the context needed to retry.
type Error struct {
	Kind   error  // one of the Err* sentinels
	Op     string // operation that failed, e.g. "delaunay.Triangulate"
	ID     int    // offending site/cell id, or NoID
	Detail string // parameter values or measurements
}

func (e *Error) Error() string {
	if e.ID != NoID {
		return fmt.Sprintf("%s: %v: id %d: %s", e.Op, e.Kind, e.ID, e.Detail)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error with a formatted detail message.
func New(kind error, op string, id int, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Detail: fmt.Sprintf(format, args...)}
}

// IsContract reports whether err is a programming-contract violation
// (a stage invoked out of order) rather than a user-correctable input problem.
func IsContract(err error) bool {
	return errors.Is(err, ErrAttributeMissing)
}

// CellID extracts the offending id from err, if any.
func CellID(err error) (int, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.ID != NoID {
		return fe.ID, true
	}
	return NoID, false
}
