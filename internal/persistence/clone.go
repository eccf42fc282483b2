package persistence

import "time"

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	clone := r
	clone.EntryTime = cloneTime(r.EntryTime)
	clone.ExitTime = cloneTime(r.ExitTime)
	clone.ValidatedAt = cloneTime(r.ValidatedAt)
	clone.Comment = cloneString(r.Comment)
	clone.ValidatedBy = cloneString(r.ValidatedBy)
	clone.Latitude = cloneFloat(r.Latitude)
	clone.Longitude = cloneFloat(r.Longitude)
	return clone
}

// Apply returns the record with the non-nil patch fields set.
func (r Record) Apply(patch RecordPatch) Record {
	updated := r.Clone()
	if patch.ExitTime != nil {
		updated.ExitTime = cloneTime(patch.ExitTime)
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	if patch.Comment != nil {
		updated.Comment = cloneString(patch.Comment)
	}
	if patch.ValidatedBy != nil {
		updated.ValidatedBy = cloneString(patch.ValidatedBy)
	}
	if patch.ValidatedAt != nil {
		updated.ValidatedAt = cloneTime(patch.ValidatedAt)
	}
	if !patch.UpdatedAt.IsZero() {
		updated.UpdatedAt = patch.UpdatedAt
	}
	return updated
}

// Matches reports whether the record passes the filter.
func (f RecordFilter) Matches(record Record) bool {
	switch f.Status {
	case RecordFilterPending:
		if record.Status == StatusValidated {
			return false
		}
	case RecordFilterValidated:
		if record.Status != StatusValidated {
			return false
		}
	}
	if f.Since != "" && record.Date < f.Since {
		return false
	}
	return true
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
