package attendance

import (
	"sort"
	"time"
)

// DeriveTodayStatus returns the stored status of today's record, or
// StatusNotScanned when the user has no record for today.
func DeriveTodayStatus(records []Record, today Date) Status {
	record, ok := RecordForDay(records, today)
	if !ok {
		return StatusNotScanned
	}
	return record.Status
}

// IsCurrentlyCheckedIn reports whether today's record exists without an exit time.
func IsCurrentlyCheckedIn(records []Record, today Date) bool {
	record, ok := RecordForDay(records, today)
	if !ok {
		return false
	}
	return record.ExitTime == nil
}

// RecordForDay returns the record whose date matches day.
func RecordForDay(records []Record, day Date) (Record, bool) {
	for _, record := range records {
		if record.Date == day {
			return record, true
		}
	}
	return Record{}, false
}

// Day groups the records that share a calendar date.
type Day struct {
	Date    Date
	Records []Record
	Worked  time.Duration
}

// GroupByDay groups records per date, most recent day first. Records inside a
// day are ordered by entry time. A positive limit caps the number of days.
func GroupByDay(records []Record, limit int) []Day {
	if len(records) == 0 {
		return []Day{}
	}

	index := make(map[Date]int)
	days := make([]Day, 0)
	for _, record := range records {
		pos, ok := index[record.Date]
		if !ok {
			pos = len(days)
			index[record.Date] = pos
			days = append(days, Day{Date: record.Date})
		}
		days[pos].Records = append(days[pos].Records, record)
		if worked, closed := WorkedDuration(record); closed {
			days[pos].Worked += worked
		}
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	for i := range days {
		sort.SliceStable(days[i].Records, func(a, b int) bool {
			return entryBefore(days[i].Records[a], days[i].Records[b])
		})
	}

	if limit > 0 && len(days) > limit {
		days = days[:limit]
	}
	return days
}

// SortByDateDesc orders records by date, most recent first.
func SortByDateDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date.After(records[j].Date)
		}
		return entryBefore(records[j], records[i])
	})
}

func entryBefore(a, b Record) bool {
	switch {
	case a.EntryTime == nil:
		return b.EntryTime != nil
	case b.EntryTime == nil:
		return false
	default:
		return a.EntryTime.Before(*b.EntryTime)
	}
}
