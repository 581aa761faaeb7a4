package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinv "github.com/fieldops/stockledger/internal/application/inventory"
	"github.com/fieldops/stockledger/internal/domain/inventory"
	"github.com/fieldops/stockledger/internal/domain/requisition"
	"github.com/fieldops/stockledger/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes that mean "another transaction got there first"
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository and the outbox share one *gorm.DB transaction.
type GormTransactionScope struct {
	db          *gorm.DB
	events      shared.OutboxEventSaver
	lockTimeout time.Duration
}

// ScopeOption configures a GormTransactionScope
type ScopeOption func(*GormTransactionScope)

// WithLockTimeout bounds how long statements wait for row locks (PostgreSQL only)
func WithLockTimeout(d time.Duration) ScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = d
	}
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB, events shared.OutboxEventSaver, opts ...ScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db, events: events}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction. The transaction commits when
// fn returns nil and rolls back otherwise. Lock timeouts, deadlocks and
// serialization failures come back as CONFLICT domain errors.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&gormTransactionalRepositories{tx: tx, events: s.events})
	})
	return translateError(err)
}

// translateError maps driver-level failures onto domain error codes and
// passes everything else through untouched
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Resource already exists")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return shared.NewDomainError(shared.CodeConflict,
				"Stock is being changed by another operation, retry shortly").
				WithDetail("sqlstate", pgErr.Code)
		case pgUniqueViolation:
			return shared.NewDomainError(shared.CodeAlreadyExists, "Resource already exists").
				WithDetail("constraint", pgErr.ConstraintName)
		}
	}
	return err
}

// gormTransactionalRepositories hands out repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	events shared.OutboxEventSaver
}

func (r *gormTransactionalRepositories) Items() inventory.ItemRepository {
	return NewGormItemRepository(r.tx)
}

func (r *gormTransactionalRepositories) Stores() inventory.StoreRepository {
	return NewGormStoreRepository(r.tx)
}

func (r *gormTransactionalRepositories) Contractors() inventory.ContractorRepository {
	return NewGormContractorRepository(r.tx)
}

func (r *gormTransactionalRepositories) Batches() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) BatchStocks() inventory.BatchStockRepository {
	return NewGormBatchStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) OwnerStocks() inventory.OwnerStockRepository {
	return NewGormOwnerStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) Ledger() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) StockRequests() requisition.StockRequestRepository {
	return NewGormStockRequestRepository(r.tx)
}

func (r *gormTransactionalRepositories) Events() appinv.EventRecorder {
	return outboxRecorder{tx: r.tx, saver: r.events}
}

// outboxRecorder writes events through the outbox saver using the open transaction
type outboxRecorder struct {
	tx    *gorm.DB
	saver shared.OutboxEventSaver
}

func (o outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	if o.saver == nil {
		return errors.New("transaction scope has no outbox configured")
	}
	return o.saver.SaveEvents(ctx, o.tx, events...)
}

var (
	_ appinv.TransactionScope          = (*GormTransactionScope)(nil)
	_ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ appinv.EventRecorder             = outboxRecorder{}
)
