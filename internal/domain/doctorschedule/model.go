package doctorschedule

import (
	"time"

	"github.com/google/uuid"
)

// DoctorSchedule links a doctor to one slot on the global schedule grid.
// The (DoctorID, ScheduleID) pair is unique; IsBooked flips only inside
// booking and cancellation transactions.
type DoctorSchedule struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctorId"`
	ScheduleID uuid.UUID `db:"schedule_id" json:"scheduleId"`
	IsBooked   bool      `db:"is_booked" json:"isBooked"`
	StartTime  time.Time `db:"start_time" json:"startDateTime"`
	EndTime    time.Time `db:"end_time" json:"endDateTime"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// PublishRequest lists the schedule slots a doctor opens for booking.
type PublishRequest struct {
	ScheduleIDs []uuid.UUID `json:"scheduleIds"`
}

// UpdateRequest adds and removes open slots in one call. Removals skip
// booked pairs silently.
type UpdateRequest struct {
	AddScheduleIDs    []uuid.UUID `json:"addScheduleIds"`
	RemoveScheduleIDs []uuid.UUID `json:"removeScheduleIds"`
}
