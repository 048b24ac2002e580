package doctor

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a provider profile. Name and Email come from the linked user row
// and are read-only here.
type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	UserID          uuid.UUID `db:"user_id" json:"userId"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Specialty       string    `db:"specialty" json:"specialty"`
	Qualification   *string   `db:"qualification" json:"qualification,omitempty"`
	ExperienceYears int       `db:"experience_years" json:"experienceYears"`
	AppointmentFee  float64   `db:"appointment_fee" json:"appointmentFee"`
	AverageRating   float64   `db:"average_rating" json:"averageRating"`
	IsDeleted       bool      `db:"is_deleted" json:"isDeleted"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}
