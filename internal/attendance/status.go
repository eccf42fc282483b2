package attendance

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a day record.
type Status string

const (
	// StatusNotScanned is only produced by derivation; it is never stored.
	StatusNotScanned Status = "not_scanned"
	StatusPresent    Status = "present"
	StatusCheckedOut Status = "checked_out"
	StatusPending    Status = "pending"
	StatusModified   Status = "modified"
	StatusValidated  Status = "validated"
)

var storedStatuses = []Status{
	StatusPresent,
	StatusCheckedOut,
	StatusPending,
	StatusModified,
	StatusValidated,
}

// StoredStatuses lists the statuses a persisted record may carry.
func StoredStatuses() []Status {
	out := make([]Status, len(storedStatuses))
	copy(out, storedStatuses)
	return out
}

// ParseStatus accepts a wire code and returns the matching stored status.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	if candidate.Stored() {
		return candidate, nil
	}
	return "", fmt.Errorf("attendance: unknown status %q", value)
}

// Stored reports whether the status may appear on a persisted record.
func (s Status) Stored() bool {
	for _, candidate := range storedStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Final reports whether no further transition is allowed.
func (s Status) Final() bool {
	return s == StatusValidated
}

// Label returns the French label shown by the mobile and web clients.
func (s Status) Label() string {
	switch s {
	case StatusNotScanned:
		return "Jour non scanné"
	case StatusPresent:
		return "Présent"
	case StatusCheckedOut:
		return "Rentré"
	case StatusPending:
		return "En attente"
	case StatusModified:
		return "Modifié"
	case StatusValidated:
		return "Validé"
	}
	return string(s)
}
