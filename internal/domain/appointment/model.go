package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment lifecycle. COMPLETED and CANCELED are terminal.
const (
	StatusScheduled  = "SCHEDULED"
	StatusInProgress = "INPROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCanceled   = "CANCELED"
)

const (
	PaymentUnpaid = "UNPAID"
	PaymentPaid   = "PAID"
)

// validNext holds the state machine edges enforced for non-admin callers.
var validNext = map[string][]string{
	StatusScheduled:  {StatusInProgress, StatusCanceled},
	StatusInProgress: {StatusCompleted},
}

// Appointment joins a patient to a doctor's published slot. VideoCallingID is
// an opaque room reference generated at booking time.
type Appointment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patientId"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctorId"`
	ScheduleID     uuid.UUID `db:"schedule_id" json:"scheduleId"`
	VideoCallingID string    `db:"video_calling_id" json:"videoCallingId"`
	Status         string    `db:"status" json:"status"`
	PaymentStatus  string    `db:"payment_status" json:"paymentStatus"`
	PatientName    string    `db:"patient_name" json:"patientName"`
	DoctorName     string    `db:"doctor_name" json:"doctorName"`
	StartTime      time.Time `db:"start_time" json:"startDateTime"`
	EndTime        time.Time `db:"end_time" json:"endDateTime"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// BookRequest is the booking payload. PayNow requests a checkout session up
// front; otherwise payment can be initiated later.
type BookRequest struct {
	DoctorID   uuid.UUID `json:"doctorId"`
	ScheduleID uuid.UUID `json:"scheduleId"`
	PayNow     bool      `json:"payNow"`
}

// BookingResult is the booked appointment plus the checkout URL when a
// session was requested.
type BookingResult struct {
	Appointment *Appointment `json:"appointment"`
	PaymentURL  string       `json:"paymentUrl,omitempty"`
}

// StatusRequest carries a state-machine transition.
type StatusRequest struct {
	Status string `json:"status"`
}
