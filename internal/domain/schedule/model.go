package schedule

import (
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = 30 * time.Minute

// Schedule is one half-open [StartTime, EndTime) slot on the global grid.
// Slots are immutable once created; doctors attach to them through
// doctor_schedules rows.
type Schedule struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StartTime time.Time `db:"start_time" json:"startDateTime"`
	EndTime   time.Time `db:"end_time" json:"endDateTime"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// GenerateRequest describes a slot-generation run: every day in
// [StartDate, EndDate], slots from DayStart to DayEnd (clock times, 24h
// "15:04" format) in SlotDuration steps.
type GenerateRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	DayStart  string `json:"dayStart"`
	DayEnd    string `json:"dayEnd"`
}

// Intervals expands the request into candidate slot intervals.
func (r GenerateRequest) Intervals() ([][2]time.Time, error) {
	startDate, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return nil, err
	}
	endDate, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return nil, err
	}
	dayStart, err := time.Parse("15:04", r.DayStart)
	if err != nil {
		return nil, err
	}
	dayEnd, err := time.Parse("15:04", r.DayEnd)
	if err != nil {
		return nil, err
	}

	var out [][2]time.Time
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		from := time.Date(day.Year(), day.Month(), day.Day(), dayStart.Hour(), dayStart.Minute(), 0, 0, time.UTC)
		until := time.Date(day.Year(), day.Month(), day.Day(), dayEnd.Hour(), dayEnd.Minute(), 0, 0, time.UTC)
		for cur := from; !cur.Add(SlotDuration).After(until); cur = cur.Add(SlotDuration) {
			out = append(out, [2]time.Time{cur, cur.Add(SlotDuration)})
		}
	}
	return out, nil
}
