package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into coded domain errors:
//   - ErrNotFound: the row does not exist
//   - ErrConflict: a uniqueness constraint rejected the write (for sessions,
//     the one-open-session-per-attendant index)
//   - ErrInvalidState: the row exists but is not in the state the write requires
//   - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
