package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/logger"
	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean name untouched", "contrato-2024.pdf", "contrato-2024.pdf"},
		{"spaces become hyphens", "estado de pago 01.pdf", "estado-de-pago-01.pdf"},
		{"accents folded", "memorándum técnico.pdf", "memorandum-tecnico.pdf"},
		{"enye folded", "diseño minero.pdf", "diseno-minero.pdf"},
		{"parens and symbols dropped", "EP (final) #3.pdf", "EP-final-3.pdf"},
		{"multiple spaces collapse", "a   b.pdf", "a-b.pdf"},
		{"everything stripped falls back", "¿¡@!?", "document.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizePathKeepsFolders(t *testing.T) {
	got := SanitizePath("faena-norte/CT-2024-001/estados-pago/estado de pago 01.pdf")
	want := "faena-norte/CT-2024-001/estados-pago/estado-de-pago-01.pdf"
	if got != want {
		t.Errorf("SanitizePath = %q, want %q", got, want)
	}
}

type repairFixture struct {
	db      *gorm.DB
	jobs    *repository.JobRepository
	logs    *repository.LogRepository
	storage *memoryStorage
	svc     *RepairService
}

func newRepairFixture(t *testing.T) *repairFixture {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	jobs := repository.NewJobRepository(db)
	logs := repository.NewLogRepository(db)
	contracts := repository.NewContractRepository(db)
	store := newMemoryStorage()
	svc := NewRepairService(jobs, logs, contracts, store, logger.NewDefault(), 5)

	return &repairFixture{db: db, jobs: jobs, logs: logs, storage: store, svc: svc}
}

func (f *repairFixture) failedJob(t *testing.T, path, lastError string) *domain.IngestJob {
	t.Helper()
	ctx := context.Background()
	job, _, err := f.jobs.Enqueue(ctx, &domain.IngestJob{StoragePath: path})
	require.NoError(t, err)
	_, err = f.jobs.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, f.jobs.MarkFailed(ctx, job.ID, lastError))
	got, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	return got
}

func TestRepairFilenames(t *testing.T) {
	fx := newRepairFixture(t)
	ctx := context.Background()

	badPath := "faena-norte/CT-2024-001/estados-pago/estado de pago 01.pdf"
	require.NoError(t, fx.storage.Upload(ctx, badPath, bytes.NewReader([]byte("%PDF-1.4")), 8, "application/pdf"))
	job := fx.failedJob(t, badPath, "parser: status 400: invalid filename")

	stats, err := fx.svc.RepairFilenames(ctx, "invalid filename", "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Examined)
	assert.Equal(t, 1, stats.Renamed)
	assert.Equal(t, 1, stats.Requeued)

	got, err := fx.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Equal(t, "faena-norte/CT-2024-001/estados-pago/estado-de-pago-01.pdf", got.StoragePath)
	assert.Empty(t, got.LastError)

	// The object moved; the old key is gone.
	exists, err := fx.storage.Exists(ctx, got.StoragePath)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = fx.storage.Exists(ctx, badPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepairFilenamesSkipsCleanNames(t *testing.T) {
	fx := newRepairFixture(t)
	ctx := context.Background()

	path := "faena-norte/CT-2024-001/contratos/contrato.pdf"
	job := fx.failedJob(t, path, "parser: status 400: invalid filename")

	stats, err := fx.svc.RepairFilenames(ctx, "invalid filename", "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Requeued)

	got, err := fx.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
}

func TestRepairFilenamesRenameFailureLeavesJob(t *testing.T) {
	fx := newRepairFixture(t)
	fx.storage.failRename = true
	ctx := context.Background()

	badPath := "faena-norte/CT-2024-001/contratos/contrato firmado.pdf"
	require.NoError(t, fx.storage.Upload(ctx, badPath, bytes.NewReader([]byte("%PDF-1.4")), 8, "application/pdf"))
	job := fx.failedJob(t, badPath, "parser: status 400: invalid filename")

	stats, err := fx.svc.RepairFilenames(ctx, "invalid filename", "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Requeued)

	// Job still points at the original object.
	got, err := fx.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, badPath, got.StoragePath)
}

func TestRepairPaths(t *testing.T) {
	fx := newRepairFixture(t)
	ctx := context.Background()

	// The path classifies cleanly now (say, the folder was renamed in
	// storage and the job's path was updated out of band).
	job := fx.failedJob(t, "faena-norte/CT-2024-001/contratos/contrato.pdf", "unknown document type")
	require.NoError(t, fx.db.Model(&domain.IngestJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{"doc_type": domain.DocTypeUnknown, "contract_id": ""}).Error)

	stats, err := fx.svc.RepairPaths(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Examined)
	assert.Equal(t, 1, stats.Requeued)

	got, err := fx.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Equal(t, domain.DocTypeContract, got.DocType)
	assert.NotEmpty(t, got.ContractID)
}

func TestRepairPathsSkipsUnresolvable(t *testing.T) {
	fx := newRepairFixture(t)
	ctx := context.Background()

	job := fx.failedJob(t, "loose-file.pdf", "unknown document type")
	require.NoError(t, fx.db.Model(&domain.IngestJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{"doc_type": domain.DocTypeUnknown, "contract_id": ""}).Error)

	stats, err := fx.svc.RepairPaths(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Requeued)
}

func TestRepairRespectsAttemptCeiling(t *testing.T) {
	fx := newRepairFixture(t)
	ctx := context.Background()

	job := fx.failedJob(t, "faena-norte/CT-2024-001/contratos/contrato.pdf", "unknown document type")
	require.NoError(t, fx.db.Model(&domain.IngestJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"doc_type":    domain.DocTypeUnknown,
			"contract_id": "",
			"attempts":    5,
		}).Error)

	stats, err := fx.svc.RepairPaths(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Exhausted)
	assert.Equal(t, 0, stats.Requeued)

	got, err := fx.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
}
