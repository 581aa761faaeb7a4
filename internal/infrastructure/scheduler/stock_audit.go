package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"go.uber.org/zap"
)

// StockAuditor finds owner totals that disagree with their batch holdings
type StockAuditor interface {
	AuditStock(ctx context.Context) ([]appinv.StockDriftResponse, error)
}

// ReportArchiver stores finished audit reports; storage.S3ObjectStorage satisfies it
type ReportArchiver interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// StockAuditReport is the archived result of one audit run
type StockAuditReport struct {
	JobID      string                      `json:"job_id"`
	RanAt      time.Time                   `json:"ran_at"`
	DriftCount int                         `json:"drift_count"`
	Drifts     []appinv.StockDriftResponse `json:"drifts"`
}

// StockAuditExecutor runs JobKindStockAudit jobs. Drift is reported, not repaired:
// a mismatch means a posting bypassed the ledger and needs a human.
type StockAuditExecutor struct {
	auditor  StockAuditor
	archiver ReportArchiver
	logger   *zap.Logger
	now      func() time.Time
}

// StockAuditOption configures a StockAuditExecutor
type StockAuditOption func(*StockAuditExecutor)

// WithReportArchiver uploads every run's report as JSON
func WithReportArchiver(archiver ReportArchiver) StockAuditOption {
	return func(e *StockAuditExecutor) {
		e.archiver = archiver
	}
}

// NewStockAuditExecutor creates a new StockAuditExecutor
func NewStockAuditExecutor(auditor StockAuditor, logger *zap.Logger, opts ...StockAuditOption) *StockAuditExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &StockAuditExecutor{
		auditor: auditor,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements JobExecutor
func (e *StockAuditExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind != JobKindStockAudit {
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}

	drifts, err := e.auditor.AuditStock(ctx)
	if err != nil {
		return err
	}

	for _, d := range drifts {
		e.logger.Error("Stock total disagrees with batch holdings",
			zap.String("job_id", job.ID.String()),
			zap.String("owner_kind", string(d.OwnerKind)),
			zap.String("owner_id", d.OwnerID.String()),
			zap.String("item_id", d.ItemID.String()),
			zap.String("recorded", d.Recorded.String()),
			zap.String("batch_total", d.BatchTotal.String()),
			zap.String("difference", d.Difference.String()),
		)
	}
	e.logger.Info("Stock audit finished",
		zap.String("job_id", job.ID.String()),
		zap.Int("drift_count", len(drifts)),
	)

	if e.archiver != nil {
		e.archive(ctx, job, drifts)
	}
	return nil
}

// archive failures are logged only; the findings are already in the log
func (e *StockAuditExecutor) archive(ctx context.Context, job *Job, drifts []appinv.StockDriftResponse) {
	ranAt := e.now()
	if drifts == nil {
		drifts = []appinv.StockDriftResponse{}
	}
	data, err := json.Marshal(StockAuditReport{
		JobID:      job.ID.String(),
		RanAt:      ranAt,
		DriftCount: len(drifts),
		Drifts:     drifts,
	})
	if err != nil {
		e.logger.Warn("Failed to encode stock audit report", zap.Error(err))
		return
	}

	key := ReportKey(ranAt, job.ID.String())
	if err := e.archiver.Upload(ctx, key, data, "application/json"); err != nil {
		e.logger.Warn("Failed to archive stock audit report",
			zap.String("job_id", job.ID.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	e.logger.Info("Stock audit report archived", zap.String("key", key))
}

// ReportKey is the object key for a run: stock-audit/<UTC date>/<job id>.json
func ReportKey(ranAt time.Time, jobID string) string {
	return fmt.Sprintf("stock-audit/%s/%s.json", ranAt.UTC().Format("2006-01-02"), jobID)
}
