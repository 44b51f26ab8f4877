package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/classify"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
)

// UpsertService routes a validated payload into the normalized model.
// Every write is keyed on a natural key, so re-processing the same
// document converges instead of duplicating. Conflicting re-extractions
// follow last-write-wins; divergence surfaces through warnings and the
// review flag, not through write refusal.
type UpsertService struct {
	contracts *repository.ContractRepository
	logs      *repository.LogRepository
	logger    *logger.Logger
}

// NewUpsertService creates a new UpsertService.
func NewUpsertService(contracts *repository.ContractRepository, logs *repository.LogRepository, log *logger.Logger) *UpsertService {
	return &UpsertService{contracts: contracts, logs: logs, logger: log}
}

func (s *UpsertService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Apply writes the payload's records for its document type. Unknown
// documents write nothing beyond the extraction record already stored;
// their review flag is the only output.
func (s *UpsertService) Apply(ctx context.Context, job *domain.IngestJob, cls classify.Result, payload *domain.ExtractedPayload) error {
	switch payload.DocType {
	case domain.DocTypeContract:
		return s.applyContract(ctx, job, cls, payload)
	case domain.DocTypePaymentState:
		return s.applyPayment(ctx, job, cls, payload)
	case domain.DocTypeMemo:
		return s.applyMemo(ctx, job, cls, payload)
	case domain.DocTypeUnknown:
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "unknown type, no records written", nil)
		return nil
	default:
		return fmt.Errorf("unhandled document type %q", payload.DocType)
	}
}

// resolveCode prefers the extracted contract code over the path-derived
// one; the path wins only when extraction produced nothing.
func resolveCode(extracted, fromPath string) string {
	if extracted != "" {
		return extracted
	}
	return fromPath
}

func (s *UpsertService) applyContract(ctx context.Context, job *domain.IngestJob, cls classify.Result, payload *domain.ExtractedPayload) error {
	fields := payload.Contract
	if fields == nil {
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "no contract projection, nothing written", nil)
		return nil
	}

	code := resolveCode(fields.Code, cls.ContractCode)
	if code == "" {
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "no contract code available, nothing written", nil)
		return nil
	}

	existing, err := s.contracts.EnsureContract(ctx, code, cls.Project)
	if err != nil {
		return fmt.Errorf("ensure contract %s: %w", code, err)
	}

	contract := &domain.Contract{
		ID:             existing.ID,
		Code:           code,
		Project:        cls.Project,
		Name:           fields.Name,
		Contractor:     fields.Contractor,
		Principal:      fields.Principal,
		StartDate:      fields.StartDate,
		EndDate:        fields.EndDate,
		Currency:       fields.Currency,
		TotalBudget:    fields.TotalBudget,
		ReviewRequired: payload.ReviewRequired,
	}
	if err := s.contracts.UpsertContract(ctx, contract); err != nil {
		return fmt.Errorf("upsert contract %s: %w", code, err)
	}

	for _, t := range fields.Tasks {
		task := &domain.ContractTask{
			ContractID: existing.ID,
			Number:     t.Number,
			Name:       t.Name,
			Budget:     t.Budget,
		}
		if err := s.contracts.UpsertTask(ctx, task); err != nil {
			return fmt.Errorf("upsert task %s: %w", t.Number, err)
		}
	}
	for _, r := range fields.Risks {
		if r.Description == "" {
			continue
		}
		risk := &domain.Risk{
			ContractID:  existing.ID,
			Description: r.Description,
			Severity:    r.Severity,
			SourceJobID: job.ID,
		}
		if err := s.contracts.UpsertRisk(ctx, risk); err != nil {
			return fmt.Errorf("upsert risk: %w", err)
		}
	}
	for _, o := range fields.Obligations {
		if o.Description == "" {
			continue
		}
		obligation := &domain.Obligation{
			ContractID:  existing.ID,
			Description: o.Description,
			DueDate:     o.DueDate,
			SourceJobID: job.ID,
		}
		if err := s.contracts.UpsertObligation(ctx, obligation); err != nil {
			return fmt.Errorf("upsert obligation: %w", err)
		}
	}

	_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "contract records written", map[string]interface{}{
		"contract_code": code,
		"tasks":         len(fields.Tasks),
		"risks":         len(fields.Risks),
		"obligations":   len(fields.Obligations),
	})
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldContractID: existing.ID,
		logger.FieldCount:      len(fields.Tasks),
	}).Info("Contract upserted")
	return nil
}

func (s *UpsertService) applyPayment(ctx context.Context, job *domain.IngestJob, cls classify.Result, payload *domain.ExtractedPayload) error {
	fields := payload.Payment
	if fields == nil {
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "no payment projection, nothing written", nil)
		return nil
	}

	code := resolveCode(fields.ContractCode, cls.ContractCode)
	if code == "" {
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "no contract code available, nothing written", nil)
		return nil
	}

	contract, err := s.contracts.EnsureContract(ctx, code, cls.Project)
	if err != nil {
		return fmt.Errorf("ensure contract %s: %w", code, err)
	}

	stateID, err := s.contracts.UpsertPaymentState(ctx, &domain.PaymentState{
		ContractID:   contract.ID,
		PeriodNumber: fields.PeriodNumber,
		PeriodStart:  fields.PeriodStart,
		PeriodEnd:    fields.PeriodEnd,
		TotalAmount:  fields.TotalAmount,
	})
	if err != nil {
		return fmt.Errorf("upsert payment period %d: %w", fields.PeriodNumber, err)
	}

	for _, l := range fields.Lines {
		line := &domain.PaymentLine{
			PaymentStateID: stateID,
			TaskNumber:     l.TaskNumber,
			Description:    l.Description,
			Amount:         l.Amount,
		}
		if err := s.contracts.UpsertPaymentLine(ctx, line); err != nil {
			return fmt.Errorf("upsert payment line %s: %w", l.TaskNumber, err)
		}
	}

	// The spend aggregate is always recomputed from stored rows; the
	// extracted total only feeds the statement row itself.
	if err := s.contracts.RecomputeSpentToDate(ctx, contract.ID); err != nil {
		return fmt.Errorf("recompute spent: %w", err)
	}

	if payload.ReviewRequired {
		if err := s.contracts.SetReviewRequired(ctx, contract.ID, true); err != nil {
			return fmt.Errorf("set review flag: %w", err)
		}
	}

	_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "payment records written", map[string]interface{}{
		"contract_code": code,
		"period":        fields.PeriodNumber,
		"lines":         len(fields.Lines),
	})
	return nil
}

func (s *UpsertService) applyMemo(ctx context.Context, job *domain.IngestJob, cls classify.Result, payload *domain.ExtractedPayload) error {
	fields := payload.Memo
	if fields == nil {
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "no memo projection, nothing written", nil)
		return nil
	}

	code := resolveCode(fields.ContractCode, cls.ContractCode)
	if code == "" {
		_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "no contract code available, nothing written", nil)
		return nil
	}

	contract, err := s.contracts.EnsureContract(ctx, code, cls.Project)
	if err != nil {
		return fmt.Errorf("ensure contract %s: %w", code, err)
	}

	topics := ""
	if len(fields.Topics) > 0 {
		if raw, err := json.Marshal(fields.Topics); err == nil {
			topics = string(raw)
		}
	}

	memo := &domain.Memo{
		ContractID: contract.ID,
		Title:      fields.Title,
		Date:       fields.Date,
		Summary:    fields.Summary,
		Topics:     topics,
	}
	if err := s.contracts.UpsertMemo(ctx, memo); err != nil {
		return fmt.Errorf("upsert memo %q: %w", fields.Title, err)
	}

	if payload.ReviewRequired {
		if err := s.contracts.SetReviewRequired(ctx, contract.ID, true); err != nil {
			return fmt.Errorf("set review flag: %w", err)
		}
	}

	_ = s.logs.Append(ctx, job.ID, domain.StepUpsert, "memo written", map[string]interface{}{
		"contract_code": code,
		"title":         fields.Title,
	})
	return nil
}
