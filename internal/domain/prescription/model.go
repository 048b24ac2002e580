package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is issued once per completed appointment by its doctor.
type Prescription struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AppointmentID uuid.UUID  `db:"appointment_id" json:"appointmentId"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctorId"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patientId"`
	Instructions  string     `db:"instructions" json:"instructions"`
	FollowUpDate  *time.Time `db:"follow_up_date" json:"followUpDate,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// IssueRequest is the prescription payload.
type IssueRequest struct {
	AppointmentID uuid.UUID  `json:"appointmentId"`
	Instructions  string     `json:"instructions"`
	FollowUpDate  *time.Time `json:"followUpDate,omitempty"`
}
