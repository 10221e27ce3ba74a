package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntity is the closed set of record kinds an audit row may point at.
type AuditEntity string

const (
	AuditEntityAccountGroup  AuditEntity = "account_group"
	AuditEntityLedgerAccount AuditEntity = "ledger_account"
	AuditEntityCostCenter    AuditEntity = "cost_center"
	AuditEntityFinancialYear AuditEntity = "financial_year"
	AuditEntityVoucherType   AuditEntity = "voucher_type"
	AuditEntityVoucher       AuditEntity = "voucher"
	AuditEntityParty         AuditEntity = "party"
	AuditEntityRecon         AuditEntity = "reconciliation"
	AuditEntityBudget        AuditEntity = "budget"
	AuditEntityRecurring     AuditEntity = "recurring_transaction"
)

func (e AuditEntity) known() bool {
	switch e {
	case AuditEntityAccountGroup, AuditEntityLedgerAccount, AuditEntityCostCenter,
		AuditEntityFinancialYear, AuditEntityVoucherType, AuditEntityVoucher,
		AuditEntityParty, AuditEntityRecon, AuditEntityBudget, AuditEntityRecurring:
		return true
	}
	return false
}

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	BusinessID int64
	ActorID    int64
	Action     string
	Entity     AuditEntity
	EntityID   int64
	Meta       map[string]any
	At         time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// normalize validates the entry and stamps an unset At. A zero time.Time is
// a real value to Postgres, not NULL, so the default has to happen here.
func (log AuditLog) normalize(now func() time.Time) (AuditLog, error) {
	if log.Action == "" || log.EntityID == 0 || !log.Entity.known() {
		return AuditLog{}, errors.New("audit log requires action and a known entity")
	}
	if log.At.IsZero() {
		log.At = now()
	}
	return log, nil
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	log, err := log.normalize(time.Now)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (business_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, log.BusinessID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
