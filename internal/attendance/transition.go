package attendance

import "errors"

// DayState describes where a user stands for a single calendar day.
type DayState int

const (
	DayNoRecord DayState = iota
	DayOpen
	DayClosed
)

func (s DayState) String() string {
	switch s {
	case DayNoRecord:
		return "no_record"
	case DayOpen:
		return "open_entry"
	case DayClosed:
		return "closed"
	}
	return "unknown"
}

// StateOf returns the day state implied by the record, nil meaning no record.
func StateOf(record *Record) DayState {
	switch {
	case record == nil || record.EntryTime == nil:
		return DayNoRecord
	case record.ExitTime == nil:
		return DayOpen
	default:
		return DayClosed
	}
}

// ScanKind is the intent carried by a decoded scan payload.
type ScanKind string

const (
	// ScanToggle lets the current state decide between entry and exit.
	ScanToggle ScanKind = "toggle"
	ScanEntry  ScanKind = "entry"
	ScanExit   ScanKind = "exit"
)

// Transition is the store mutation a scan produces.
type Transition int

const (
	TransitionEntry Transition = iota + 1
	TransitionExit
)

// Status returns the status a record carries after the transition.
func (t Transition) Status() Status {
	if t == TransitionExit {
		return StatusCheckedOut
	}
	return StatusPresent
}

var (
	// ErrDayClosed is returned for any scan after the day has been closed.
	ErrDayClosed = errors.New("attendance: day already closed")
	// ErrAlreadyCheckedIn is returned for an explicit entry scan on an open day.
	ErrAlreadyCheckedIn = errors.New("attendance: already checked in")
	// ErrNotCheckedIn is returned for an explicit exit scan without an entry.
	ErrNotCheckedIn = errors.New("attendance: no entry recorded for the day")
)

// NextTransition resolves the mutation for a scan of the given kind.
func NextTransition(state DayState, kind ScanKind) (Transition, error) {
	switch state {
	case DayClosed:
		return 0, ErrDayClosed
	case DayOpen:
		if kind == ScanEntry {
			return 0, ErrAlreadyCheckedIn
		}
		return TransitionExit, nil
	default:
		if kind == ScanExit {
			return 0, ErrNotCheckedIn
		}
		return TransitionEntry, nil
	}
}
