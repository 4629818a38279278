package apperror

import "errors"

// Kind classifies an error by how the client is expected to react to it.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindState
)

func (that Kind) String() string {
	switch that {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is a domain error that carries its Kind.
type Error struct {
	kind Kind
	msg  string
	base *Error
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (that *Error) Error() string {
	return that.msg
}

func (that *Error) Kind() Kind {
	return that.kind
}

// Is reports whether target is this error or the sentinel it was derived from.
func (that *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t == that || (that.base != nil && t == that.base)
}

// With - derives an error of the same kind with detail appended to the message.
// The result still matches the original sentinel with errors.Is.
func (that *Error) With(detail string) *Error {
	base := that
	if that.base != nil {
		base = that.base
	}

	return &Error{kind: that.kind, msg: that.msg + ": " + detail, base: base}
}

var (
	ErrMissingField    = newError(KindValidation, "required field is missing")
	ErrInvalidPayload  = newError(KindValidation, "invalid payload")
	ErrInvalidPosition = newError(KindValidation, "invalid move position")

	ErrPlayerNotFound = newError(KindNotFound, "player not found")
	ErrGameNotFound   = newError(KindNotFound, "game not found")
	ErrInvalidSession = newError(KindNotFound, "invalid session")

	ErrNameTaken         = newError(KindConflict, "name is already taken")
	ErrGameFull          = newError(KindConflict, "game is already full")
	ErrCannotJoinOwnGame = newError(KindConflict, "cannot join your own game")
	ErrNotYourTurn       = newError(KindConflict, "it's not your turn")
	ErrCellOccupied      = newError(KindConflict, "position already taken")

	ErrGameFinished      = newError(KindState, "game is already finished")
	ErrGameNotInProgress = newError(KindState, "game is not in progress")
	ErrAwaitingOpponent  = newError(KindState, "waiting for an opponent to join")
)

// KindOf - returns the Kind of the first *Error found in the chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}

	return KindUnknown
}

// Message - returns the user-facing message for err: the domain message when one is wrapped,
// a generic one otherwise so storage details never reach a client.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}

	return "internal error"
}
