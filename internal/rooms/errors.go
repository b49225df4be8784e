package rooms

import "errors"

// Request rejections. Each maps to a stable wire code through WireCode.
var (
	ErrCodeExhausted    = errors.New("room code space exhausted")
	ErrMalformedCode    = errors.New("malformed room code")
	ErrNotFound         = errors.New("room not found")
	ErrInactive         = errors.New("room inactive")
	ErrFull             = errors.New("room full")
	ErrAlreadyMember    = errors.New("already a member")
	ErrInProgress       = errors.New("match in progress")
	ErrNotInRoom        = errors.New("not in a room")
	ErrNotHost          = errors.New("host only")
	ErrWrongPhase       = errors.New("wrong phase")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrAlreadyInRoom    = errors.New("already in another room")
	ErrUnknownPlayer    = errors.New("unknown player")
)

var wireCodes = []struct {
	err  error
	code string
}{
	{ErrCodeExhausted, "CodeExhausted"},
	{ErrMalformedCode, "MalformedCode"},
	{ErrNotFound, "NotFound"},
	{ErrInactive, "Inactive"},
	{ErrFull, "Full"},
	{ErrAlreadyMember, "AlreadyMember"},
	{ErrInProgress, "InProgress"},
	{ErrNotInRoom, "NotInRoom"},
	{ErrNotHost, "NotHost"},
	{ErrWrongPhase, "WrongPhase"},
	{ErrNotEnoughPlayers, "NotEnoughPlayers"},
	{ErrAlreadyInRoom, "AlreadyInRoom"},
	{ErrUnknownPlayer, "UnknownPlayer"},
}

// WireCode returns the client-facing code for err, or "Internal" when err is
// not a request rejection.
func WireCode(err error) string {
	for _, entry := range wireCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return "Internal"
}
