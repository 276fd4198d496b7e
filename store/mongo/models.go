package mongo

import (
	"time"

	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

// Dates are stored as ISO-8601 strings so range filters compare
// lexicographically.

// ==================== Lien models ====================

type lienModel struct {
	ID                 string            `bson:"_id"`
	TenantID           string            `bson:"tenant_id"`
	CertificateNumber  string            `bson:"certificate_number"`
	PrincipalCents     int64             `bson:"principal_cents"`
	Currency           string            `bson:"currency"`
	AnnualRateBP       int64             `bson:"annual_rate_bp"`
	PurchaseDate       string            `bson:"purchase_date"`
	RedemptionDeadline string            `bson:"redemption_deadline"`
	Status             string            `bson:"status"`
	County             string            `bson:"county"`
	State              string            `bson:"state"`
	Metadata           map[string]string `bson:"metadata,omitempty"`
	Revision           int64             `bson:"revision"`
	CreatedAt          time.Time         `bson:"created_at"`
	UpdatedAt          time.Time         `bson:"updated_at"`
}

func toLienModel(l *lien.Lien) *lienModel {
	return &lienModel{
		ID:                 l.ID.String(),
		TenantID:           l.TenantID.String(),
		CertificateNumber:  l.CertificateNumber,
		PrincipalCents:     l.Principal.Amount,
		Currency:           l.Principal.Currency,
		AnnualRateBP:       l.AnnualRate.BasisPoints(),
		PurchaseDate:       l.PurchaseDate.String(),
		RedemptionDeadline: l.RedemptionDeadline.String(),
		Status:             string(l.Status),
		County:             l.County,
		State:              l.State,
		Metadata:           l.Metadata,
		Revision:           l.Revision,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

func fromLienModel(m *lienModel) (*lien.Lien, error) {
	lienID, err := id.ParseLienID(m.ID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.Parse(m.TenantID)
	if err != nil {
		return nil, err
	}
	purchase, err := types.ParseDate(m.PurchaseDate)
	if err != nil {
		return nil, err
	}
	due, err := types.ParseDate(m.RedemptionDeadline)
	if err != nil {
		return nil, err
	}
	return &lien.Lien{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Revision:  m.Revision,
		},
		ID:                 lienID,
		TenantID:           tenantID,
		CertificateNumber:  m.CertificateNumber,
		Principal:          types.Cents(m.PrincipalCents, m.Currency),
		AnnualRate:         types.BasisPoints(m.AnnualRateBP),
		PurchaseDate:       purchase,
		RedemptionDeadline: due,
		Status:             lien.Status(m.Status),
		County:             m.County,
		State:              m.State,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	ID          string            `bson:"_id"`
	TenantID    string            `bson:"tenant_id"`
	LienID      string            `bson:"lien_id"`
	AmountCents int64             `bson:"amount_cents"`
	Currency    string            `bson:"currency"`
	AppliedDate string            `bson:"applied_date"`
	Method      string            `bson:"method,omitempty"`
	Reference   string            `bson:"reference"`
	Metadata    map[string]string `bson:"metadata,omitempty"`
	Revision    int64             `bson:"revision"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		TenantID:    p.TenantID.String(),
		LienID:      p.LienID.String(),
		AmountCents: p.Amount.Amount,
		Currency:    p.Amount.Currency,
		AppliedDate: p.AppliedDate.String(),
		Method:      p.Method,
		Reference:   p.Reference,
		Metadata:    p.Metadata,
		Revision:    p.Revision,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.Parse(m.TenantID)
	if err != nil {
		return nil, err
	}
	lienID, err := id.ParseLienID(m.LienID)
	if err != nil {
		return nil, err
	}
	applied, err := types.ParseDate(m.AppliedDate)
	if err != nil {
		return nil, err
	}
	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Revision:  m.Revision,
		},
		ID:          paymentID,
		TenantID:    tenantID,
		LienID:      lienID,
		Amount:      types.Cents(m.AmountCents, m.Currency),
		AppliedDate: applied,
		Method:      m.Method,
		Reference:   m.Reference,
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Deadline models ====================

type deadlineModel struct {
	ID              string    `bson:"_id"`
	TenantID        string    `bson:"tenant_id"`
	LienID          string    `bson:"lien_id"`
	Kind            string    `bson:"kind"`
	DueDate         string    `bson:"due_date"`
	Status          string    `bson:"status"`
	FiredThresholds []int     `bson:"fired_thresholds"`
	Revision        int64     `bson:"revision"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toDeadlineModel(inst *deadline.Instance) *deadlineModel {
	fired := inst.FiredThresholds
	if fired == nil {
		fired = []int{}
	}
	return &deadlineModel{
		ID:              inst.ID.String(),
		TenantID:        inst.TenantID.String(),
		LienID:          inst.LienID.String(),
		Kind:            string(inst.Kind),
		DueDate:         inst.DueDate.String(),
		Status:          string(inst.Status),
		FiredThresholds: fired,
		Revision:        inst.Revision,
		CreatedAt:       inst.CreatedAt,
		UpdatedAt:       inst.UpdatedAt,
	}
}

func fromDeadlineModel(m *deadlineModel) (*deadline.Instance, error) {
	deadlineID, err := id.ParseDeadlineID(m.ID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.Parse(m.TenantID)
	if err != nil {
		return nil, err
	}
	lienID, err := id.ParseLienID(m.LienID)
	if err != nil {
		return nil, err
	}
	due, err := types.ParseDate(m.DueDate)
	if err != nil {
		return nil, err
	}
	return &deadline.Instance{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Revision:  m.Revision,
		},
		ID:              deadlineID,
		TenantID:        tenantID,
		LienID:          lienID,
		Kind:            deadline.Kind(m.Kind),
		DueDate:         due,
		Status:          deadline.Status(m.Status),
		FiredThresholds: m.FiredThresholds,
	}, nil
}

// ==================== Notification models ====================

type notificationModel struct {
	ID        string     `bson:"_id"`
	TenantID  string     `bson:"tenant_id"`
	Type      string     `bson:"type"`
	LienID    string     `bson:"lien_id,omitempty"`
	Priority  string     `bson:"priority"`
	Message   string     `bson:"message"`
	DedupeKey string     `bson:"dedupe_key,omitempty"`
	Read      bool       `bson:"read"`
	ReadAt    *time.Time `bson:"read_at,omitempty"`
	Revision  int64      `bson:"revision"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	lienRaw := ""
	if !n.LienID.IsNil() {
		lienRaw = n.LienID.String()
	}
	return &notificationModel{
		ID:        n.ID.String(),
		TenantID:  n.TenantID.String(),
		Type:      string(n.Type),
		LienID:    lienRaw,
		Priority:  string(n.Priority),
		Message:   n.Message,
		DedupeKey: n.DedupeKey,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		Revision:  n.Revision,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func fromNotificationModel(m *notificationModel) (*notification.Notification, error) {
	notificationID, err := id.ParseNotificationID(m.ID)
	if err != nil {
		return nil, err
	}
	tenantID, err := tenant.Parse(m.TenantID)
	if err != nil {
		return nil, err
	}
	var lienID id.LienID
	if m.LienID != "" {
		if lienID, err = id.ParseLienID(m.LienID); err != nil {
			return nil, err
		}
	}
	return &notification.Notification{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Revision:  m.Revision,
		},
		ID:        notificationID,
		TenantID:  tenantID,
		Type:      notification.Type(m.Type),
		LienID:    lienID,
		Priority:  notification.Priority(m.Priority),
		Message:   m.Message,
		DedupeKey: m.DedupeKey,
		Read:      m.Read,
		ReadAt:    m.ReadAt,
	}, nil
}
