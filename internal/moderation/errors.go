package moderation

import (
	"errors"
	"fmt"
)

// Pre-check rejections. These fire before any side effect and carry a
// message suitable for showing to the invoker as-is.
var (
	ErrTargetNotFound   = errors.New("that user is not a member of this server")
	ErrSelfTarget       = errors.New("you cannot target yourself")
	ErrOwnerTarget      = errors.New("you cannot target the server owner")
	ErrInsufficientRank = errors.New("you cannot target a user with an equal or higher role than you")
	ErrNothingToReverse = errors.New("that user is not currently muted")
)

// IsRejection reports whether the error is a pre-check rejection, meaning
// no side effect happened and the message can be surfaced directly.
func IsRejection(err error) bool {
	return errors.Is(err, ErrTargetNotFound) ||
		errors.Is(err, ErrSelfTarget) ||
		errors.Is(err, ErrOwnerTarget) ||
		errors.Is(err, ErrInsufficientRank) ||
		errors.Is(err, ErrNothingToReverse)
}

// PlatformError wraps a failure of the platform action itself (insufficient
// permission, user already in that state). No case was created.
type PlatformError struct {
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform action failed: %v", e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// PartialError reports that the platform action was applied but the ledger
// write failed even after retries. The invoker must be told the action took
// effect without a record rather than seeing an unqualified failure.
type PartialError struct {
	Err error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("action applied but record-keeping failed: %v", e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}
