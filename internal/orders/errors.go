package orders

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	// ErrStaleTransition: CAS kalah race, status di DB sudah berubah sejak
	// dibaca. Recoverable: caller re-read lalu coba lagi.
	ErrStaleTransition = errors.New("stale transition")

	// ErrIllegalTransition: transisi di luar tabel validNext. Bug di caller,
	// tidak pernah di-retry.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrTerminalState: order sudah final; dipakai untuk menolak cancel.
	ErrTerminalState = errors.New("order in terminal state")
)
