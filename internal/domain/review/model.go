package review

import (
	"time"

	"github.com/google/uuid"
)

// Review is a patient's one-time rating of a paid appointment.
type Review struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointmentId"`
	PatientID     uuid.UUID `db:"patient_id" json:"patientId"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctorId"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// CreateRequest is the review submission payload.
type CreateRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	Rating        int       `json:"rating"`
	Comment       *string   `json:"comment,omitempty"`
}
