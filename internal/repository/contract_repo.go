package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContractRepository persists the normalized contract model. All writes
// are natural-key upserts so re-processing the same document converges on
// one row per business entity. Conflicting re-extractions follow
// last-write-wins; divergence is surfaced through the review flag, not by
// blocking the write.
type ContractRepository struct {
	db *gorm.DB
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// EnsureContract resolves a contract code to its row ID, creating a stub
// row if none exists yet. Payment statements and memos routinely arrive
// before the contract document itself.
func (r *ContractRepository) EnsureContract(ctx context.Context, code, project string) (*domain.Contract, error) {
	var contract domain.Contract
	err := r.db.WithContext(ctx).First(&contract, "code = ?", code).Error
	if err == nil {
		return &contract, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	contract = domain.Contract{
		ID:      uuid.New().String(),
		Code:    code,
		Project: project,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&contract)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost a concurrent creation race; the row exists now.
		if err := r.db.WithContext(ctx).First(&contract, "code = ?", code).Error; err != nil {
			return nil, err
		}
	}
	return &contract, nil
}

// GetByCode retrieves a contract by its natural key.
func (r *ContractRepository) GetByCode(ctx context.Context, code string) (*domain.Contract, error) {
	var contract domain.Contract
	if err := r.db.WithContext(ctx).First(&contract, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// UpsertContract writes contract head fields keyed on code. The derived
// spent_to_date aggregate is never assigned here.
func (r *ContractRepository) UpsertContract(ctx context.Context, contract *domain.Contract) error {
	if contract.ID == "" {
		contract.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"project", "name", "contractor", "principal",
			"start_date", "end_date", "currency",
			"total_budget", "review_required", "updated_at",
		}),
	}).Create(contract).Error
}

// UpsertTask writes one task line keyed on (contract_id, number).
func (r *ContractRepository) UpsertTask(ctx context.Context, task *domain.ContractTask) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "budget", "updated_at",
		}),
	}).Create(task).Error
}

// UpsertPaymentState writes one payment statement keyed on
// (contract_id, period_number) and returns the surviving row ID so line
// writes can attach to it.
func (r *ContractRepository) UpsertPaymentState(ctx context.Context, payment *domain.PaymentState) (string, error) {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "period_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"period_start", "period_end", "total_amount", "updated_at",
		}),
	}).Create(payment).Error
	if err != nil {
		return "", err
	}

	// On conflict the pre-existing row keeps its ID; read it back.
	var stored domain.PaymentState
	if err := r.db.WithContext(ctx).
		First(&stored, "contract_id = ? AND period_number = ?",
			payment.ContractID, payment.PeriodNumber).Error; err != nil {
		return "", err
	}
	return stored.ID, nil
}

// UpsertPaymentLine writes one per-task amount keyed on
// (payment_state_id, task_number).
func (r *ContractRepository) UpsertPaymentLine(ctx context.Context, line *domain.PaymentLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_state_id"}, {Name: "task_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"description", "amount", "updated_at",
		}),
	}).Create(line).Error
}

// UpsertRisk writes one risk keyed on (contract_id, description).
func (r *ContractRepository) UpsertRisk(ctx context.Context, risk *domain.Risk) error {
	if risk.ID == "" {
		risk.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "description"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"severity", "source_job_id", "updated_at",
		}),
	}).Create(risk).Error
}

// UpsertObligation writes one obligation keyed on (contract_id, description).
func (r *ContractRepository) UpsertObligation(ctx context.Context, obligation *domain.Obligation) error {
	if obligation.ID == "" {
		obligation.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "description"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"due_date", "source_job_id", "updated_at",
		}),
	}).Create(obligation).Error
}

// UpsertMemo writes one memo keyed on (contract_id, title, date).
func (r *ContractRepository) UpsertMemo(ctx context.Context, memo *domain.Memo) error {
	if memo.ID == "" {
		memo.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "title"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary", "topics", "updated_at",
		}),
	}).Create(memo).Error
}

// RecomputeSpentToDate refreshes the contract's derived spend aggregate
// from its stored payment statements. Called after every payment upsert so
// the aggregate always reflects persisted rows, not extracted values.
func (r *ContractRepository) RecomputeSpentToDate(ctx context.Context, contractID string) error {
	var total float64
	if err := r.db.WithContext(ctx).
		Model(&domain.PaymentState{}).
		Where("contract_id = ?", contractID).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&domain.Contract{}).
		Where("id = ?", contractID).
		Update("spent_to_date", total).Error
}

// SetReviewRequired flips the contract-level review flag.
func (r *ContractRepository) SetReviewRequired(ctx context.Context, contractID string, required bool) error {
	return r.db.WithContext(ctx).
		Model(&domain.Contract{}).
		Where("id = ?", contractID).
		Update("review_required", required).Error
}

// ListTasks returns a contract's task lines ordered by number.
func (r *ContractRepository) ListTasks(ctx context.Context, contractID string) ([]domain.ContractTask, error) {
	var tasks []domain.ContractTask
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("number ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// RecordExtraction appends one audit row for an extraction attempt.
// Rows accumulate; nothing ever rewrites an earlier attempt.
func (r *ContractRepository) RecordExtraction(ctx context.Context, jobID string, payload *domain.ExtractedPayload, rawOutput string) error {
	structured, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := domain.ExtractionRecord{
		ID:             uuid.New().String(),
		JobID:          jobID,
		DocType:        payload.DocType,
		RawOutput:      rawOutput,
		Structured:     string(structured),
		Confidence:     payload.Confidence,
		ReviewRequired: payload.ReviewRequired,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}
