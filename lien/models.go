package lien

import (
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusRedeemed   Status = "REDEEMED"
	StatusForeclosed Status = "FORECLOSED"
	StatusExpired    Status = "EXPIRED"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusRedeemed, StatusForeclosed, StatusExpired:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRedeemed, StatusForeclosed, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving
// from s to next. Only ACTIVE has outgoing edges.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	return s == StatusActive && next.Terminal()
}

type Lien struct {
	types.Entity
	ID                 id.LienID         `json:"id"`
	TenantID           tenant.ID         `json:"tenant_id"`
	CertificateNumber  string            `json:"certificate_number"`
	Principal          types.Money       `json:"principal"`
	AnnualRate         types.Rate        `json:"annual_rate"`
	PurchaseDate       types.Date        `json:"purchase_date"`
	RedemptionDeadline types.Date        `json:"redemption_deadline"`
	Status             Status            `json:"status"`
	County             string            `json:"county,omitempty"`
	State              string            `json:"state,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Validate checks every field invariant and returns the full list of
// violations, never just the first.
func (l *Lien) Validate() []Violation {
	var vs []Violation
	if l.TenantID.IsZero() {
		vs = append(vs, Violation{Field: "tenant_id", Message: "tenant scope is required"})
	}
	if l.CertificateNumber == "" {
		vs = append(vs, Violation{Field: "certificate_number", Message: "must not be empty"})
	}
	if !l.Principal.IsPositive() {
		vs = append(vs, Violation{Field: "principal", Message: "must be positive"})
	}
	if l.AnnualRate < 0 || l.AnnualRate > types.MaxRate {
		vs = append(vs, Violation{Field: "annual_rate", Message: "must be between 0% and 100%"})
	}
	if l.PurchaseDate.IsZero() {
		vs = append(vs, Violation{Field: "purchase_date", Message: "is required"})
	}
	if l.RedemptionDeadline.IsZero() {
		vs = append(vs, Violation{Field: "redemption_deadline", Message: "is required"})
	} else if !l.PurchaseDate.IsZero() && !l.RedemptionDeadline.After(l.PurchaseDate) {
		vs = append(vs, Violation{Field: "redemption_deadline", Message: "must be after purchase_date"})
	}
	if l.Status != "" && !l.Status.Valid() {
		vs = append(vs, Violation{Field: "status", Message: "unknown status"})
	}
	return vs
}

// Violation is a single field-level invariant failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Patch holds the mutable fields of a lien update. Nil fields are
// left unchanged. Append-only fields (id, tenant_id, purchase_date)
// have no representation here and so cannot be patched.
type Patch struct {
	CertificateNumber  *string
	Principal          *types.Money
	AnnualRate         *types.Rate
	RedemptionDeadline *types.Date
	County             *string
	State              *string
	Metadata           map[string]string
}

// TouchesFinancialTerms reports whether applying the patch would alter
// principal, rate, or the redemption deadline. Terminal liens reject
// such patches.
func (p Patch) TouchesFinancialTerms() bool {
	return p.Principal != nil || p.AnnualRate != nil || p.RedemptionDeadline != nil
}

// Apply copies the patch's set fields onto l.
func (p Patch) Apply(l *Lien) {
	if p.CertificateNumber != nil {
		l.CertificateNumber = *p.CertificateNumber
	}
	if p.Principal != nil {
		l.Principal = *p.Principal
	}
	if p.AnnualRate != nil {
		l.AnnualRate = *p.AnnualRate
	}
	if p.RedemptionDeadline != nil {
		l.RedemptionDeadline = *p.RedemptionDeadline
	}
	if p.County != nil {
		l.County = *p.County
	}
	if p.State != nil {
		l.State = *p.State
	}
	if p.Metadata != nil {
		if l.Metadata == nil {
			l.Metadata = make(map[string]string, len(p.Metadata))
		}
		for k, v := range p.Metadata {
			l.Metadata[k] = v
		}
	}
}
