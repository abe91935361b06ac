package votes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the voter does not exist or is inactive
	ErrUserNotFound = errors.New("user not found")

	// ErrContentNotFound indicates the post/comment does not exist or is inactive
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidPolarity indicates the vote type is not upvote/downvote
	ErrInvalidPolarity = errors.New("invalid vote type: must be 'upvote' or 'downvote'")

	// ErrInvalidContentKind indicates the content kind is not post/comment
	ErrInvalidContentKind = errors.New("invalid content kind: must be 'post' or 'comment'")
)

// Code classifies engine failures for callers.
type Code string

const (
	CodeValidation  Code = "validation"
	CodeNotFound    Code = "not_found"
	CodeConflict    Code = "conflict"
	CodeUnavailable Code = "unavailable"
	CodeInternal    Code = "internal"

	// CodeRetryable marks a transient storage failure inside one attempt.
	// CastVote never returns it: an exhausted budget becomes CodeUnavailable.
	CodeRetryable Code = "retryable"
)

// Error is the engine's error type.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code Code, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with code, keeping err as the cause.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode reports whether err (or anything it wraps) is an *Error with code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// ConflictError builds a conflict for a guarded write that matched no row.
func ConflictError(op, msg string) error {
	return NewError(CodeConflict, op, msg, nil)
}

// MapError classifies storage and domain failures into engine codes.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidPolarity), errors.Is(err, ErrInvalidContentKind):
		return Wrap(CodeValidation, op, err)
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrContentNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(CodeConflict, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return Wrap(CodeConflict, op, err)
		case "23514": // check_violation, counter would go negative
			return Wrap(CodeConflict, op, err)
		case "23503": // foreign_key_violation, row vanished under us
			return Wrap(CodeNotFound, op, err)
		case "40001", "40P01", "55P03", "57014": // serialization, deadlock, lock_not_available, query_canceled
			return Wrap(CodeRetryable, op, err)
		}
		return Wrap(CodeInternal, op, err)
	}

	return Wrap(CodeInternal, op, err)
}

// isRetryable reports whether a failed attempt may be re-run from scratch.
func isRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeRetryable, CodeConflict:
		return true
	default:
		return false
	}
}
