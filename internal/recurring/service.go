package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/internal/voucher"
)

// AuditPort records mutations for the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// VoucherCreator materializes vouchers from templates. Satisfied by
// voucher.Service, which enforces balance, account state, and period locks.
type VoucherCreator interface {
	Create(ctx context.Context, tenant shared.Tenant, input voucher.Input) (voucher.Voucher, error)
}

// Service is the recurring transaction scheduler.
type Service struct {
	repo     Repository
	vouchers VoucherCreator
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, vouchers VoucherCreator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, vouchers: vouchers, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, tenant shared.Tenant, activeOnly bool) ([]Transaction, error) {
	return s.repo.List(ctx, tenant.BusinessID, activeOnly)
}

func (s *Service) Get(ctx context.Context, tenant shared.Tenant, id int64) (Transaction, error) {
	return s.repo.Get(ctx, tenant.BusinessID, id)
}

// Input carries the fields for creating or updating a recurring transaction.
type Input struct {
	VoucherTypeID int64
	Name          string
	Frequency     Frequency
	DayOfWeek     *int
	DayOfMonth    *int
	Month         *int
	StartDate     time.Time
	EndDate       *time.Time
	Occurrences   *int
	Narration     string
	IsActive      bool
	Template      []TemplateItem
}

func (in Input) validate() error {
	if !in.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", shared.ErrValidation, in.Frequency)
	}
	if in.Frequency == FrequencyWeekly && in.DayOfWeek != nil && (*in.DayOfWeek < 0 || *in.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week must be 0..6", shared.ErrValidation)
	}
	if in.DayOfMonth != nil && (*in.DayOfMonth < 1 || *in.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month must be 1..31", shared.ErrValidation)
	}
	if in.Month != nil && (*in.Month < 1 || *in.Month > 12) {
		return fmt.Errorf("%w: month must be 1..12", shared.ErrValidation)
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", shared.ErrValidation)
	}
	if in.Occurrences != nil && *in.Occurrences < 1 {
		return fmt.Errorf("%w: occurrences must be positive", shared.ErrValidation)
	}
	if len(in.Template) == 0 {
		return fmt.Errorf("%w: template needs at least one line", shared.ErrValidation)
	}
	draft := Transaction{Template: in.Template}
	if !draft.Balanced() {
		return shared.ErrImbalanced
	}
	return nil
}

func (s *Service) Create(ctx context.Context, tenant shared.Tenant, input Input) (Transaction, error) {
	if err := input.validate(); err != nil {
		return Transaction{}, err
	}
	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, Transaction{
			BusinessID:    tenant.BusinessID,
			VoucherTypeID: input.VoucherTypeID,
			Name:          input.Name,
			Frequency:     input.Frequency,
			DayOfWeek:     input.DayOfWeek,
			DayOfMonth:    input.DayOfMonth,
			Month:         input.Month,
			StartDate:     input.StartDate,
			EndDate:       input.EndDate,
			Occurrences:   input.Occurrences,
			Narration:     input.Narration,
			IsActive:      input.IsActive,
		})
		if err != nil {
			return err
		}
		created.Template, err = tx.InsertTemplate(ctx, created.ID, input.Template)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, tenant, "recurring.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, tenant shared.Tenant, id int64, input Input) (Transaction, error) {
	if err := input.validate(); err != nil {
		return Transaction{}, err
	}
	var updated Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		existing.VoucherTypeID = input.VoucherTypeID
		existing.Name = input.Name
		existing.Frequency = input.Frequency
		existing.DayOfWeek = input.DayOfWeek
		existing.DayOfMonth = input.DayOfMonth
		existing.Month = input.Month
		existing.StartDate = input.StartDate
		existing.EndDate = input.EndDate
		existing.Occurrences = input.Occurrences
		existing.Narration = input.Narration
		existing.IsActive = input.IsActive
		if err := tx.Update(ctx, existing); err != nil {
			return err
		}
		if err := tx.DeleteTemplate(ctx, id); err != nil {
			return err
		}
		existing.Template, err = tx.InsertTemplate(ctx, id, input.Template)
		if err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, tenant, "recurring.update", id, map[string]any{"name": updated.Name})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, tenant shared.Tenant, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, tenant.BusinessID, id); err != nil {
			return err
		}
		return tx.Delete(ctx, tenant.BusinessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "recurring.delete", id, nil)
	return nil
}

// Generate materializes a posted voucher from the schedule's template at its
// next ungenerated due date. The occurrence is claimed under a row lock
// before the voucher is built, so a repeated run of the same due date hits
// the watermark guard instead of posting a duplicate; if the voucher engine
// rejects the template the claim is released and no occurrence is consumed.
func (s *Service) Generate(ctx context.Context, tenant shared.Tenant, id int64) (voucher.Voucher, error) {
	var rec Transaction
	var due time.Time
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = tx.GetForUpdate(ctx, tenant.BusinessID, id)
		if err != nil {
			return err
		}
		var ok bool
		due, ok = NextDueDate(rec, s.now())
		if !ok {
			return fmt.Errorf("%w: schedule is inactive or exhausted", shared.ErrValidation)
		}
		if !rec.Balanced() {
			return shared.ErrImbalanced
		}
		return tx.MarkGenerated(ctx, tenant.BusinessID, id, due)
	})
	if err != nil {
		return voucher.Voucher{}, err
	}

	items := make([]voucher.ItemInput, 0, len(rec.Template))
	for _, it := range rec.Template {
		items = append(items, voucher.ItemInput{
			LedgerAccountID: it.LedgerAccountID,
			CostCenterID:    it.CostCenterID,
			DebitAmount:     it.DebitAmount,
			CreditAmount:    it.CreditAmount,
			Narration:       it.Narration,
		})
	}
	v, err := s.vouchers.Create(ctx, tenant, voucher.Input{
		VoucherTypeID: rec.VoucherTypeID,
		Date:          due,
		Narration:     rec.Narration,
		Post:          true,
		Items:         items,
	})
	if err != nil {
		releaseErr := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.ReleaseGenerated(ctx, tenant.BusinessID, id, due, rec.LastGeneratedDate)
		})
		if releaseErr != nil && s.logger != nil {
			s.logger.Error("recurring claim release failed",
				slog.Int64("recurring_id", id),
				slog.Int64("business_id", tenant.BusinessID),
				slog.Any("error", releaseErr))
		}
		return voucher.Voucher{}, err
	}
	s.record(ctx, tenant, "recurring.generate", id, map[string]any{"voucher_id": v.ID, "number": v.VoucherNumber, "due_date": due.Format("2006-01-02")})
	return v, nil
}

// ProcessDue generates vouchers for every schedule due today, continuing
// past individual failures. It returns the number of successes.
func (s *Service) ProcessDue(ctx context.Context, tenant shared.Tenant) (int, error) {
	due, err := s.repo.List(ctx, tenant.BusinessID, true)
	if err != nil {
		return 0, err
	}
	today := s.now()
	generated := 0
	for _, rec := range due {
		if !IsDue(rec, today) {
			continue
		}
		if _, err := s.Generate(ctx, tenant, rec.ID); err != nil {
			if s.logger != nil {
				s.logger.Warn("recurring generation failed",
					slog.Int64("recurring_id", rec.ID),
					slog.Int64("business_id", tenant.BusinessID),
					slog.Any("error", err))
			}
			continue
		}
		generated++
	}
	return generated, nil
}

// ProcessAllDue runs ProcessDue for every business with active schedules.
// Generated vouchers carry no acting user; the audit rows attribute them to
// the system actor.
func (s *Service) ProcessAllDue(ctx context.Context) (int, error) {
	ids, err := s.repo.ActiveBusinessIDs(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, businessID := range ids {
		count, err := s.ProcessDue(ctx, shared.Tenant{BusinessID: businessID})
		if err != nil {
			if s.logger != nil {
				s.logger.Error("recurring batch failed",
					slog.Int64("business_id", businessID),
					slog.Any("error", err))
			}
			continue
		}
		total += count
	}
	return total, nil
}

func (s *Service) record(ctx context.Context, tenant shared.Tenant, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: tenant.BusinessID,
		ActorID:    tenant.UserID,
		Action:     action,
		Entity:     shared.AuditEntityRecurring,
		EntityID:   entityID,
		Meta:       meta,
		At:         s.now(),
	})
}
