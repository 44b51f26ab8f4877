package domain

import "time"

// Contract is the normalized business record for one mining services
// contract. Code is the natural key used for idempotent upserts; many
// jobs over time may update the same row.
type Contract struct {
	ID         string `gorm:"type:text;primaryKey" json:"id"`
	Code       string `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Project    string `gorm:"type:text;index" json:"project"`
	Name       string `gorm:"type:text" json:"name"`
	Contractor string `gorm:"type:text" json:"contractor"`
	Principal  string `gorm:"type:text" json:"principal"`
	StartDate  string `gorm:"type:text" json:"start_date,omitempty"`
	EndDate    string `gorm:"type:text" json:"end_date,omitempty"`
	Currency   string `gorm:"type:text" json:"currency,omitempty"`

	TotalBudget float64 `json:"total_budget"`

	// SpentToDate is a derived aggregate over payment statements. It is
	// recomputed from payment rows after every payment upsert, never
	// written from extracted values directly.
	SpentToDate float64 `json:"spent_to_date"`

	ReviewRequired bool      `json:"review_required"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Contract.
func (Contract) TableName() string {
	return "contracts"
}

// ContractTask is one task line of a contract, keyed by
// (contract_id, number) after task-number normalization.
type ContractTask struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	ContractID string    `gorm:"type:text;not null;index;uniqueIndex:idx_contract_task" json:"contract_id"`
	Number     string    `gorm:"type:text;not null;uniqueIndex:idx_contract_task" json:"number"`
	Name       string    `gorm:"type:text" json:"name"`
	Budget     float64   `json:"budget"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for ContractTask.
func (ContractTask) TableName() string {
	return "contract_tasks"
}

// PaymentState is one payment statement period for a contract, keyed by
// (contract_id, period_number).
type PaymentState struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	ContractID   string    `gorm:"type:text;not null;index;uniqueIndex:idx_contract_period" json:"contract_id"`
	PeriodNumber int       `gorm:"not null;uniqueIndex:idx_contract_period" json:"period_number"`
	PeriodStart  string    `gorm:"type:text" json:"period_start,omitempty"`
	PeriodEnd    string    `gorm:"type:text" json:"period_end,omitempty"`
	TotalAmount  float64   `json:"total_amount"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for PaymentState.
func (PaymentState) TableName() string {
	return "payment_states"
}

// PaymentLine is one per-task amount within a payment statement, keyed by
// (payment_state_id, task_number).
type PaymentLine struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	PaymentStateID string    `gorm:"type:text;not null;index;uniqueIndex:idx_payment_line" json:"payment_state_id"`
	TaskNumber     string    `gorm:"type:text;not null;uniqueIndex:idx_payment_line" json:"task_number"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Amount         float64   `json:"amount"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for PaymentLine.
func (PaymentLine) TableName() string {
	return "payment_lines"
}

// Risk is an identified contract risk, keyed by (contract_id, description).
type Risk struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	ContractID  string    `gorm:"type:text;not null;index;uniqueIndex:idx_contract_risk" json:"contract_id"`
	Description string    `gorm:"type:text;not null;uniqueIndex:idx_contract_risk" json:"description"`
	Severity    string    `gorm:"type:text" json:"severity,omitempty"`
	SourceJobID string    `gorm:"type:text" json:"source_job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Risk.
func (Risk) TableName() string {
	return "risks"
}

// Obligation is a contractual obligation, keyed by (contract_id, description).
type Obligation struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	ContractID  string    `gorm:"type:text;not null;index;uniqueIndex:idx_contract_obligation" json:"contract_id"`
	Description string    `gorm:"type:text;not null;uniqueIndex:idx_contract_obligation" json:"description"`
	DueDate     string    `gorm:"type:text" json:"due_date,omitempty"`
	SourceJobID string    `gorm:"type:text" json:"source_job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Obligation.
func (Obligation) TableName() string {
	return "obligations"
}

// Memo is a stored technical memorandum summary, keyed by
// (contract_id, title, date).
type Memo struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	ContractID string    `gorm:"type:text;not null;index;uniqueIndex:idx_contract_memo" json:"contract_id"`
	Title      string    `gorm:"type:text;not null;uniqueIndex:idx_contract_memo" json:"title"`
	Date       string    `gorm:"type:text;uniqueIndex:idx_contract_memo" json:"date,omitempty"`
	Summary    string    `gorm:"type:text" json:"summary,omitempty"`
	Topics     string    `gorm:"type:text" json:"topics,omitempty"` // JSON-encoded list
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Memo.
func (Memo) TableName() string {
	return "memos"
}
