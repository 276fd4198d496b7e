package notification

import (
	"strconv"
	"time"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

type Type string

const (
	TypeDeadline        Type = "deadline_alert"
	TypeLienRedeemed    Type = "lien_redeemed"
	TypePaymentReceived Type = "payment_received"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Notification struct {
	types.Entity
	ID        id.NotificationID `json:"id"`
	TenantID  tenant.ID         `json:"tenant_id"`
	Type      Type              `json:"type"`
	LienID    id.LienID         `json:"lien_id,omitempty"`
	Priority  Priority          `json:"priority"`
	Message   string            `json:"message"`
	DedupeKey string            `json:"dedupe_key,omitempty"`
	Read      bool              `json:"read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
}

// DeadlineDedupeKey enforces at most one alert per (lien, threshold).
func DeadlineDedupeKey(lienID id.LienID, threshold int) string {
	return "ddl|" + lienID.String() + "|" + strconv.Itoa(threshold)
}

// RedemptionDedupeKey enforces at most one redemption alert per lien.
func RedemptionDedupeKey(lienID id.LienID) string {
	return "redeemed|" + lienID.String()
}

// PaymentDedupeKey enforces at most one alert per recorded payment.
func PaymentDedupeKey(paymentID id.PaymentID) string {
	return "payment|" + paymentID.String()
}
