package payment

import (
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

// Payment is an immutable application of funds against a lien.
// Corrections are new entries with negative amounts, never edits.
type Payment struct {
	types.Entity
	ID          id.PaymentID      `json:"id"`
	TenantID    tenant.ID         `json:"tenant_id"`
	LienID      id.LienID         `json:"lien_id"`
	Amount      types.Money       `json:"amount"`
	AppliedDate types.Date        `json:"applied_date"`
	Method      string            `json:"method,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DuplicateKey identifies a probable double submission. Two payments
// with the same key against the same lien are rejected.
func (p *Payment) DuplicateKey() string {
	return p.LienID.String() + "|" + p.AppliedDate.String() + "|" +
		p.Amount.String() + "|" + p.Reference
}
