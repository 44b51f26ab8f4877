package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestEnqueueIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	first, created, err := repo.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "faena-norte/CT-2024-001/contratos/contrato.pdf",
		Project:     "faena-norte",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.JobStatusQueued, first.Status)

	second, created, err := repo.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "faena-norte/CT-2024-001/contratos/contrato.pdf",
		Project:     "faena-norte",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&domain.IngestJob{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnqueueContentHashDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	first, created, err := repo.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "faena-norte/CT-2024-001/contratos/a.pdf",
		ContentHash: "abc123",
	})
	require.NoError(t, err)
	require.True(t, created)

	// Same bytes uploaded under a different path.
	dup, created, err := repo.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "faena-norte/CT-2024-001/contratos/a-copy.pdf",
		ContentHash: "abc123",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)
}

func TestContentHashUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := domain.IngestJob{
		Status:  domain.JobStatusQueued,
		DocType: domain.DocTypeUnknown,
	}

	first := base
	first.ID = uuid.New().String()
	first.StoragePath = "p/c/contratos/a.pdf"
	first.ContentHash = "deadbeef"
	require.NoError(t, db.WithContext(ctx).Create(&first).Error)

	// A second row with the same hash must be rejected at the schema level;
	// the read-then-insert in Enqueue is not the only guard.
	second := base
	second.ID = uuid.New().String()
	second.StoragePath = "p/c/contratos/b.pdf"
	second.ContentHash = "deadbeef"
	assert.Error(t, db.WithContext(ctx).Create(&second).Error)

	// Rows without a hash are not constrained against each other.
	for _, p := range []string{"p/c/contratos/c.pdf", "p/c/contratos/d.pdf"} {
		row := base
		row.ID = uuid.New().String()
		row.StoragePath = p
		require.NoError(t, db.WithContext(ctx).Create(&row).Error)
	}
}

func TestEnqueueContentHashRace(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	const writers = 6
	ids := make([]string, writers)
	var createdN int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, created, err := repo.Enqueue(ctx, &domain.IngestJob{
				StoragePath: fmt.Sprintf("faena-norte/CT-2024-001/contratos/copia-%d.pdf", i),
				ContentHash: "cafebabe",
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			if created {
				createdN++
			}
			ids[i] = job.ID
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdN, "same bytes must create exactly one job")
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, db.Model(&domain.IngestJob{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestClaimSingleWinner(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "faena-norte/CT-2024-001/contratos/contrato.pdf",
	})
	require.NoError(t, err)

	const workers = 8
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.Claim(ctx, job.ID)
			assert.NoError(t, err)
			if claimed != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one claimer must win")

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusWorking, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.StartedAt)
}

func TestClaimNextEmptyQueue(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)

	claimed, err := repo.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestMarkDoneAndFailed(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, &domain.IngestJob{StoragePath: "p/c/contratos/a.pdf"})
	require.NoError(t, err)
	_, err = repo.Claim(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, repo.MarkDone(ctx, job.ID))
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, got.Status)
	assert.NotNil(t, got.FinishedAt)

	failed, _, err := repo.Enqueue(ctx, &domain.IngestJob{StoragePath: "p/c/contratos/b.pdf"})
	require.NoError(t, err)
	_, err = repo.Claim(ctx, failed.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "parser: status 500"))

	got, err = repo.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "parser: status 500", got.LastError)
}

func TestResetToQueued(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, &domain.IngestJob{StoragePath: "p/c/contratos/a.pdf"})
	require.NoError(t, err)

	// Only failed jobs can be reset.
	err = repo.ResetToQueued(ctx, job.ID)
	assert.Error(t, err)

	_, err = repo.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, job.ID, "storage: key not found"))
	require.NoError(t, repo.ResetToQueued(ctx, job.ID))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Empty(t, got.LastError)
	assert.Equal(t, 1, got.Attempts, "attempts survive a repair reset")
}

func TestListStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, &domain.IngestJob{StoragePath: "p/c/contratos/a.pdf"})
	require.NoError(t, err)
	_, err = repo.Claim(ctx, job.ID)
	require.NoError(t, err)

	// Fresh working job is not stale.
	stale, err := repo.ListStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stale)

	// Backdate the row to simulate an abandoned worker.
	old := time.Now().Add(-45 * time.Minute)
	require.NoError(t, db.Model(&domain.IngestJob{}).
		Where("id = ?", job.ID).
		Update("updated_at", old).Error)

	stale, err = repo.ListStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, job.ID, stale[0].ID)
	// Still working: staleness is surfaced, never auto-failed.
	assert.Equal(t, domain.JobStatusWorking, stale[0].Status)
}

func TestDeleteTerminalOlderThan(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	oldDone, _, err := repo.Enqueue(ctx, &domain.IngestJob{StoragePath: "p/c/contratos/old.pdf"})
	require.NoError(t, err)
	_, err = repo.Claim(ctx, oldDone.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(ctx, oldDone.ID))

	queued, _, err := repo.Enqueue(ctx, &domain.IngestJob{StoragePath: "p/c/contratos/queued.pdf"})
	require.NoError(t, err)

	cutoff := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, db.Model(&domain.IngestJob{}).
		Where("id IN ?", []string{oldDone.ID, queued.ID}).
		Update("updated_at", cutoff).Error)

	removed, err := repo.DeleteTerminalOlderThan(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	// Queued jobs are never reaped regardless of age.
	_, err = repo.GetByID(ctx, queued.ID)
	assert.NoError(t, err)
}

func TestLogAppendAndList(t *testing.T) {
	db := newTestDB(t)
	logs := NewLogRepository(db)
	ctx := context.Background()

	jobID := "job-1"
	require.NoError(t, logs.Append(ctx, jobID, domain.StepEnqueued, "queued", nil))
	require.NoError(t, logs.Append(ctx, jobID, domain.StepClassify, "classified as contract", map[string]interface{}{
		"doc_type": "contract",
	}))
	require.NoError(t, logs.Append(ctx, "job-2", domain.StepEnqueued, "queued", nil))

	entries, err := logs.ListByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.StepEnqueued, entries[0].Step)
	assert.Equal(t, domain.StepClassify, entries[1].Step)
	assert.Contains(t, entries[1].Metadata, "contract")
}

func TestLogRetention(t *testing.T) {
	db := newTestDB(t)
	logs := NewLogRepository(db)
	ctx := context.Background()

	require.NoError(t, logs.Append(ctx, "job-1", domain.StepEnqueued, "old", nil))
	require.NoError(t, logs.Append(ctx, "job-1", domain.StepComplete, "recent", nil))

	old := time.Now().Add(-61 * 24 * time.Hour)
	require.NoError(t, db.Model(&domain.JobLog{}).
		Where("message = ?", "old").
		Update("created_at", old).Error)

	removed, err := logs.DeleteOlderThan(ctx, 60*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	remaining, err := logs.ListByJob(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "recent", remaining[0].Message)
}

func TestEnsureContractIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	first, err := repo.EnsureContract(ctx, "CT-2024-001", "faena-norte")
	require.NoError(t, err)
	second, err := repo.EnsureContract(ctx, "CT-2024-001", "faena-norte")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestUpsertContractConverges(t *testing.T) {
	db := newTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	c := &domain.Contract{
		Code:        "CT-2024-001",
		Project:     "faena-norte",
		Contractor:  "Minera Andes SpA",
		TotalBudget: 1000000,
	}
	require.NoError(t, repo.UpsertContract(ctx, c))

	// Re-extraction with corrected budget converges on the same row.
	require.NoError(t, repo.UpsertContract(ctx, &domain.Contract{
		Code:        "CT-2024-001",
		Project:     "faena-norte",
		Contractor:  "Minera Andes SpA",
		TotalBudget: 1050000,
	}))

	var count int64
	require.NoError(t, db.Model(&domain.Contract{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := repo.GetByCode(ctx, "CT-2024-001")
	require.NoError(t, err)
	assert.Equal(t, 1050000.0, got.TotalBudget)
}

func TestUpsertTaskKeyedByNumber(t *testing.T) {
	db := newTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	contract, err := repo.EnsureContract(ctx, "CT-2024-001", "faena-norte")
	require.NoError(t, err)

	require.NoError(t, repo.UpsertTask(ctx, &domain.ContractTask{
		ContractID: contract.ID, Number: "1.2", Name: "Visita a terreno", Budget: 5000,
	}))
	require.NoError(t, repo.UpsertTask(ctx, &domain.ContractTask{
		ContractID: contract.ID, Number: "1.2", Name: "Visita a terreno", Budget: 5500,
	}))

	tasks, err := repo.ListTasks(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 5500.0, tasks[0].Budget)
}

func TestPaymentUpsertAndSpentToDate(t *testing.T) {
	db := newTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	contract, err := repo.EnsureContract(ctx, "CT-2024-001", "faena-norte")
	require.NoError(t, err)

	id1, err := repo.UpsertPaymentState(ctx, &domain.PaymentState{
		ContractID: contract.ID, PeriodNumber: 1, TotalAmount: 200000,
	})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertPaymentLine(ctx, &domain.PaymentLine{
		PaymentStateID: id1, TaskNumber: "1.2", Amount: 200000,
	}))

	// Re-processing the same period keeps the original row ID.
	id1again, err := repo.UpsertPaymentState(ctx, &domain.PaymentState{
		ContractID: contract.ID, PeriodNumber: 1, TotalAmount: 210000,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id1again)

	_, err = repo.UpsertPaymentState(ctx, &domain.PaymentState{
		ContractID: contract.ID, PeriodNumber: 2, TotalAmount: 90000,
	})
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeSpentToDate(ctx, contract.ID))
	got, err := repo.GetByCode(ctx, "CT-2024-001")
	require.NoError(t, err)
	assert.Equal(t, 300000.0, got.SpentToDate)
}

func TestRecordExtraction(t *testing.T) {
	db := newTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	payload := &domain.ExtractedPayload{
		DocType:    domain.DocTypeContract,
		Confidence: 0.91,
	}
	require.NoError(t, repo.RecordExtraction(ctx, "job-1", payload, `{"contract_code":"CT-2024-001"}`))
	require.NoError(t, repo.RecordExtraction(ctx, "job-1", payload, `{"contract_code":"CT-2024-001"}`))

	// Attempts accumulate, never overwrite.
	var count int64
	require.NoError(t, db.Model(&domain.ExtractionRecord{}).
		Where("job_id = ?", "job-1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
