package attendance

import (
	"sort"

	"github.com/presensync/presensync/backend/go-services/internal/models"
)

// sortSessions orders sessions by start time, newest first. Unparseable
// start times sort last.
func sortSessions(list []*models.AttendanceSession) {
	sort.SliceStable(list, func(i, j int) bool {
		a, aerr := models.ParseTimestamp(list[i].StartTime)
		b, berr := models.ParseTimestamp(list[j].StartTime)
		if aerr != nil || berr != nil {
			return aerr == nil
		}
		return a.After(b)
	})
}

// sortRecords orders records by mark time, oldest first.
func sortRecords(list []*models.AttendanceRecord) {
	sort.SliceStable(list, func(i, j int) bool {
		a, aerr := models.ParseTimestamp(list[i].Timestamp)
		b, berr := models.ParseTimestamp(list[j].Timestamp)
		if aerr != nil || berr != nil {
			return aerr == nil
		}
		return a.Before(b)
	})
}
