package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/bigquery"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutcomeExporter ships ledger rows to analytics.
type OutcomeExporter interface {
	InsertOutcomes(ctx context.Context, rows ...bigquery.OutcomeRow) error
}

// Service is the checkout audit ledger. Writes are diagnostic: callers log
// failures and carry on.
type Service struct {
	tx       txRunner
	repo     Repository
	exporter OutcomeExporter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(tx txRunner, repo Repository, exporter OutcomeExporter, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{tx: tx, repo: repo, exporter: exporter, logg: logg, now: time.Now}, nil
}

// RecordOrder stores the outcome of an order persistence attempt, including
// attempts that left an empty header behind.
func (s *Service) RecordOrder(ctx context.Context, header orders.OrderHeader, result *orders.Result) error {
	if result == nil || strings.TrimSpace(result.OrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order result required")
	}
	counts := result.Counts()
	attempt := &models.CheckoutAttempt{
		ID:            uuid.NewString(),
		OrderID:       result.OrderID,
		OrderNumber:   header.OrderNumber,
		UserID:        optional(header.UserID),
		TotalCents:    header.Totals.TotalCents,
		LinesCreated:  counts.Created,
		LinesDegraded: counts.Degraded,
		LinesDropped:  counts.Dropped,
		Succeeded:     orders.Succeeded(result.Lines),
		VerifiedField: optional(result.VerifiedField),
		PaymentStatus: header.PaymentStatus,
	}
	if attempt.OrderNumber == "" {
		attempt.OrderNumber = result.OrderNumber
	}
	if result.Link != nil {
		attempt.LinkField = optional(result.Link.Field)
		attempt.LinkMode = optional(string(result.Link.Mode))
	}
	if !attempt.Succeeded {
		attempt.FailureReason = optional("no line items created")
	}

	if err := s.repo.Create(ctx, attempt); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already recorded").
				WithDetails(map[string]any{"order_id": attempt.OrderID, "order_number": attempt.OrderNumber})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout attempt")
	}

	s.export(ctx, attempt, result.Linked(), result.Verified())
	return nil
}

// RecordPaymentInitiated marks the attempt as handed off to the gateway.
func (s *Service) RecordPaymentInitiated(ctx context.Context, orderID, paymentID string) error {
	return s.updatePayment(ctx, orderID, func(attempt *models.CheckoutAttempt) {
		attempt.PaymentStatus = enums.PaymentStatusInitiated
		attempt.PaymentID = optional(paymentID)
		attempt.FailureReason = nil
	})
}

// RecordPaymentFailure notes that payment could not be started for an order
// that already exists in the backend. Nothing is compensated.
func (s *Service) RecordPaymentFailure(ctx context.Context, orderID, orderNumber, reason string) error {
	if strings.TrimSpace(orderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment initiation failed"
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		attempt, err := repo.FindByOrderID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout attempt")
		}
		write := repo.Save
		if attempt == nil {
			attempt = &models.CheckoutAttempt{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				OrderNumber: orderNumber,
				Succeeded:   true,
			}
			write = repo.Create
		}
		attempt.PaymentStatus = enums.PaymentStatusInitiationFailed
		attempt.FailureReason = optional(reason)
		if err := write(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment failure")
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID,
			"reason":   reason,
		}), "audit.payment.initiation_failed")
		return nil
	})
}

// OrderTotal returns the server-priced total recorded for orderID. A nil
// error with ok=false means no attempt exists for the order.
func (s *Service) OrderTotal(ctx context.Context, orderID string) (int64, bool, error) {
	attempt, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return 0, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout attempt")
	}
	if attempt == nil {
		return 0, false, nil
	}
	return attempt.TotalCents, true, nil
}

func (s *Service) updatePayment(ctx context.Context, orderID string, mutate func(*models.CheckoutAttempt)) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		attempt, err := repo.FindByOrderID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout attempt")
		}
		if attempt == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "checkout attempt not found").
				WithDetails(map[string]any{"order_id": orderID})
		}
		mutate(attempt)
		if err := repo.Save(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout attempt")
		}
		return nil
	})
}

func (s *Service) export(ctx context.Context, attempt *models.CheckoutAttempt, linked, verified bool) {
	if s.exporter == nil {
		return
	}
	row := bigquery.OutcomeRow{
		AttemptID:     attempt.ID,
		OrderID:       attempt.OrderID,
		OrderNumber:   attempt.OrderNumber,
		TotalCents:    attempt.TotalCents,
		LinesCreated:  attempt.LinesCreated,
		LinesDegraded: attempt.LinesDegraded,
		LinesDropped:  attempt.LinesDropped,
		Succeeded:     attempt.Succeeded,
		Linked:        linked,
		Verified:      verified,
		PaymentStatus: string(attempt.PaymentStatus),
		RecordedAt:    s.now().UTC(),
	}
	if err := s.exporter.InsertOutcomes(ctx, row); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "audit.export.failed")
	}
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
