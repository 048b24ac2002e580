package stats

import "time"

// StatusCount is one slice of the appointment-status pie.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// MonthlyCount is one bar of the appointments-per-month chart.
type MonthlyCount struct {
	Month time.Time `db:"month" json:"month"`
	Count int       `db:"count" json:"count"`
}

// Dashboard carries the aggregates for one role. Fields that do not apply to
// the caller's role stay nil and drop out of the JSON.
type Dashboard struct {
	TotalPatients       *int           `json:"totalPatients,omitempty"`
	TotalDoctors        *int           `json:"totalDoctors,omitempty"`
	TotalAppointments   int            `json:"totalAppointments"`
	Revenue             *float64       `json:"revenue,omitempty"`
	TotalSpent          *float64       `json:"totalSpent,omitempty"`
	StatusBreakdown     []StatusCount  `json:"statusBreakdown"`
	MonthlyAppointments []MonthlyCount `json:"monthlyAppointments,omitempty"`
}
