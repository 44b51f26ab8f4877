package domain

import (
	"encoding/json"
	"time"
)

// FieldProvenance points an extracted field back to where it came from
// in the source document.
type FieldProvenance struct {
	Field   string `json:"field"`
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// TaskFields is one contract task line extracted from a contract document.
type TaskFields struct {
	Number string  `json:"task_number"`
	Name   string  `json:"task_name"`
	Budget float64 `json:"budget"`
}

// RiskFields is one identified risk extracted from a contract or memo.
type RiskFields struct {
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
}

// ObligationFields is one contractual obligation.
type ObligationFields struct {
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
}

// ContractFields is the typed projection of a contract document.
type ContractFields struct {
	Code        string             `json:"contract_code"`
	Name        string             `json:"contract_name"`
	Contractor  string             `json:"contractor"`
	Principal   string             `json:"principal"`
	StartDate   string             `json:"start_date,omitempty"`
	EndDate     string             `json:"end_date,omitempty"`
	TotalBudget float64            `json:"total_budget"`
	Currency    string             `json:"currency,omitempty"`
	Tasks       []TaskFields       `json:"tasks,omitempty"`
	Risks       []RiskFields       `json:"risks,omitempty"`
	Obligations []ObligationFields `json:"obligations,omitempty"`
}

// PaymentLineFields is one per-task amount in a payment statement.
type PaymentLineFields struct {
	TaskNumber  string  `json:"task_number"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// PaymentFields is the typed projection of a payment statement
// ("estado de pago").
type PaymentFields struct {
	ContractCode string              `json:"contract_code"`
	PeriodNumber int                 `json:"period_number"`
	PeriodStart  string              `json:"period_start,omitempty"`
	PeriodEnd    string              `json:"period_end,omitempty"`
	TotalAmount  float64             `json:"total_amount"`
	Lines        []PaymentLineFields `json:"lines,omitempty"`
}

// MemoFields is the typed projection of a technical memorandum.
type MemoFields struct {
	ContractCode string   `json:"contract_code"`
	Title        string   `json:"title"`
	Date         string   `json:"date,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Topics       []string `json:"topics,omitempty"`
}

// ExtractedPayload is the validated result of one extraction attempt.
// Exactly one of the typed projections is non-nil for a known document
// type; all of them are nil for DocTypeUnknown. Nothing downstream of the
// validator ever sees the raw model output except through Raw.
type ExtractedPayload struct {
	DocType        DocumentType      `json:"doc_type"`
	Raw            json.RawMessage   `json:"raw,omitempty"`
	Contract       *ContractFields   `json:"contract,omitempty"`
	Payment        *PaymentFields    `json:"payment,omitempty"`
	Memo           *MemoFields       `json:"memo,omitempty"`
	Confidence     float64           `json:"confidence"`
	Warnings       []string          `json:"warnings,omitempty"`
	ReviewRequired bool              `json:"review_required"`
	Provenance     []FieldProvenance `json:"provenance,omitempty"`
}

// AddWarning appends a warning to the payload.
func (p *ExtractedPayload) AddWarning(w string) {
	p.Warnings = append(p.Warnings, w)
}

// ExtractionRecord is the persisted audit row for one extraction attempt.
// Re-extraction writes a new row; old rows are retained for provenance,
// never updated in place.
type ExtractionRecord struct {
	ID             string       `gorm:"type:text;primaryKey" json:"id"`
	JobID          string       `gorm:"type:text;not null;index" json:"job_id"`
	DocType        DocumentType `gorm:"type:text" json:"doc_type"`
	RawOutput      string       `gorm:"type:text" json:"raw_output"`
	Structured     string       `gorm:"type:text" json:"structured"` // JSON-encoded ExtractedPayload
	Confidence     float64      `json:"confidence"`
	ReviewRequired bool         `json:"review_required"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TableName returns the database table name for ExtractionRecord.
func (ExtractionRecord) TableName() string {
	return "extraction_records"
}
