package freedv

// SyncState is the frame synchronisation state.
type SyncState int32

const (
	// Unsynced: no reliable bit alignment, output is muted.
	Unsynced SyncState = iota
	// WaitFirstHalf: locked, waiting for the half-frame marked by sync bit 0.
	WaitFirstHalf
	// WaitSecondHalf: first half captured, waiting for sync bit 1.
	WaitSecondHalf
)

func (s SyncState) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case WaitFirstHalf:
		return "wait_first_half"
	case WaitSecondHalf:
		return "wait_second_half"
	default:
		return "unknown"
	}
}
