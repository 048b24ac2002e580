package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusUnpaid = "UNPAID"
	StatusPaid   = "PAID"
)

// Payment is the money side of one appointment. TransactionID is our own
// reference handed to the gateway; GatewayEventID is stamped by the webhook
// and makes event delivery idempotent.
type Payment struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	AppointmentID  uuid.UUID       `db:"appointment_id" json:"appointmentId"`
	Amount         float64         `db:"amount" json:"amount"`
	TransactionID  string          `db:"transaction_id" json:"transactionId"`
	Status         string          `db:"status" json:"status"`
	GatewayEventID *string         `db:"gateway_event_id" json:"gatewayEventId,omitempty"`
	GatewayData    json.RawMessage `db:"gateway_data" json:"gatewayData,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}
