package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

// Backend is the slice of the commerce REST surface order persistence needs.
type Backend interface {
	CreateOrder(ctx context.Context, attrs map[string]any) (string, error)
	CreateOrderItem(ctx context.Context, attrs map[string]any) (string, error)
	UpdateOrder(ctx context.Context, orderID string, attrs map[string]any) error
	GetOrder(ctx context.Context, orderID, populate string) (commerce.Record, error)
}

type sizeResolver interface {
	Resolve(ctx context.Context, productID, sizeLabel string) (string, bool)
}

// AttemptRecorder keeps a diagnostic trail of persistence attempts, including
// ones that left a dangling header behind.
type AttemptRecorder interface {
	RecordOrder(ctx context.Context, header OrderHeader, result *Result) error
}

// EventPublisher announces created orders. Delivery is best-effort.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, header OrderHeader, result *Result) error
}

// Service persists orders and their line items in the commerce backend.
type Service interface {
	CreateOrder(ctx context.Context, header OrderHeader, lines []pricing.CartLine) (*Result, error)
}

// Options tunes line item pacing and relation linking.
type Options struct {
	LinkFields    []string
	LineItemDelay time.Duration
	Workers       int
	Recorder      AttemptRecorder
	Publisher     EventPublisher
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
}

type service struct {
	backend    Backend
	sizes      sizeResolver
	strategies []LinkStrategy
	fields     []string
	delay      time.Duration
	workers    int
	recorder   AttemptRecorder
	publisher  EventPublisher
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// NewService builds the order persistence service.
func NewService(backend Backend, sizes sizeResolver, opts Options) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("commerce backend required")
	}
	if sizes == nil {
		return nil, fmt.Errorf("size resolver required")
	}
	fields := normalizeFields(opts.LinkFields)
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one link field required")
	}
	if opts.LineItemDelay < 0 {
		return nil, fmt.Errorf("line item delay must not be negative")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		backend:    backend,
		sizes:      sizes,
		strategies: LinkStrategies(fields),
		fields:     fields,
		delay:      opts.LineItemDelay,
		workers:    workers,
		recorder:   opts.Recorder,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logg:       logg,
		sleep:      sleepContext,
		now:        time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, header OrderHeader, lines []pricing.CartLine) (*Result, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line")
	}
	start := s.now()
	ctx = s.logg.WithOrderNumber(ctx, header.OrderNumber)

	orderID, err := s.backend.CreateOrder(ctx, header.attributes())
	if err != nil {
		s.metrics.ObserveOrder(false, s.now().Sub(start))
		s.logg.Error(ctx, "order.header.failed", err)
		code := pkgerrors.CodeDependency
		if pkgerrors.CodeOf(err) == pkgerrors.CodeTimeout {
			code = pkgerrors.CodeTimeout
		}
		return nil, pkgerrors.Wrap(code, err, "create order header")
	}
	ctx = s.logg.WithOrderID(ctx, orderID)
	s.logg.Info(ctx, "order.header.created")

	result := &Result{OrderID: orderID, OrderNumber: header.OrderNumber}
	result.Lines = s.createLines(ctx, orderID, lines)

	var dropped error
	for _, line := range result.Lines {
		s.metrics.IncLineOutcome(string(line.Outcome))
		if line.Outcome == LineDropped {
			dropped = multierr.Append(dropped, fmt.Errorf("line %d (product %s): %w", line.Index, line.ProductID, line.Err))
		}
	}
	counts := result.Counts()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"lines_created":  counts.Created,
		"lines_degraded": counts.Degraded,
		"lines_dropped":  counts.Dropped,
	})
	if dropped != nil {
		s.logg.Warn(s.logg.WithField(ctx, "errors", errorStrings(dropped)), "order.lines.dropped")
	}

	if !Succeeded(result.Lines) {
		s.metrics.ObserveOrder(false, s.now().Sub(start))
		s.record(ctx, header, result)
		err := pkgerrors.Wrap(pkgerrors.CodeDependency, dropped, "no line items could be created").
			WithDetails(map[string]any{"order_id": orderID, "dropped": counts.Dropped})
		s.logg.Error(ctx, "order.lines.none_created", err)
		return nil, err
	}

	ids := persistedItemIDs(result.Lines)
	result.Link = s.link(ctx, orderID, ids)
	result.VerifiedField = s.verify(ctx, orderID)

	s.metrics.ObserveOrder(true, s.now().Sub(start))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"linked":   result.Linked(),
		"verified": result.Verified(),
	}), "order.persisted")

	s.record(ctx, header, result)
	s.publish(ctx, header, result)
	return result, nil
}

func (s *service) createLines(ctx context.Context, orderID string, lines []pricing.CartLine) []LineResult {
	results := make([]LineResult, len(lines))
	if s.workers <= 1 {
		for i, line := range lines {
			if i > 0 {
				if err := s.sleep(ctx, s.delay); err != nil {
					dropRemaining(results, lines, i, err)
					return results
				}
			}
			results[i] = s.createLine(ctx, orderID, i, line)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, line := range lines {
		if i > 0 {
			if err := s.sleep(gctx, s.delay); err != nil {
				dropRemaining(results, lines, i, err)
				break
			}
		}
		g.Go(func() error {
			results[i] = s.createLine(gctx, orderID, i, line)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// createLine honours the two-attempt contract: with relations first, then a
// scalar-only payload. A line failing both is dropped.
func (s *service) createLine(ctx context.Context, orderID string, index int, line pricing.CartLine) LineResult {
	result := LineResult{Index: index, ProductID: line.ProductID}
	lineCtx := s.logg.WithFields(ctx, map[string]any{
		"line":       index,
		"product_id": line.ProductID,
	})

	sizeID, _ := s.sizes.Resolve(lineCtx, line.ProductID, line.Size)
	result.SizeID = sizeID

	itemID, relErr := s.backend.CreateOrderItem(lineCtx, relationalLine(orderID, line, sizeID))
	if relErr == nil {
		result.Outcome = LineCreated
		result.ItemID = itemID
		return result
	}
	s.logg.Warn(s.logg.WithField(lineCtx, "error", relErr.Error()), "order.line.relations_rejected")

	itemID, scalarErr := s.backend.CreateOrderItem(lineCtx, scalarLine(orderID, line))
	if scalarErr == nil {
		result.Outcome = LineCreatedWithoutRelations
		result.ItemID = itemID
		s.logg.Warn(lineCtx, "order.line.degraded")
		return result
	}

	result.Outcome = LineDropped
	result.Err = multierr.Combine(relErr, scalarErr)
	s.logg.Error(lineCtx, "order.line.dropped", result.Err)
	return result
}

// link walks the strategy list and stops at the first accepted update.
func (s *service) link(ctx context.Context, orderID string, ids []string) *LinkStrategy {
	if len(ids) == 0 {
		return nil
	}
	for _, strategy := range s.strategies {
		attemptCtx := s.logg.WithFields(ctx, map[string]any{
			"link_field": strategy.Field,
			"link_mode":  string(strategy.Mode),
		})
		err := s.backend.UpdateOrder(attemptCtx, orderID, strategy.Payload(ids))
		s.metrics.IncLinkAttempt(strategy.Field, string(strategy.Mode), err == nil)
		if err == nil {
			s.logg.Info(attemptCtx, "order.link.succeeded")
			chosen := strategy
			return &chosen
		}
		s.logg.Debug(s.logg.WithField(attemptCtx, "error", err.Error()), "order.link.attempt_failed")
	}
	s.logg.Warn(ctx, "order.link.exhausted")
	return nil
}

// verify reads the order back once per candidate field and reports the first
// field showing a non-empty relation. It never changes the outcome.
func (s *service) verify(ctx context.Context, orderID string) string {
	for _, field := range s.fields {
		record, err := s.backend.GetOrder(ctx, orderID, field)
		if err != nil {
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"field": field, "error": err.Error()}), "order.verify.read_failed")
			continue
		}
		if len(record.Relation(field)) > 0 {
			s.metrics.IncVerification(true)
			return field
		}
	}
	s.metrics.IncVerification(false)
	s.logg.Warn(ctx, "order.verify.unlinked")
	return ""
}

func (s *service) record(ctx context.Context, header OrderHeader, result *Result) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordOrder(ctx, header, result); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order.audit.failed")
	}
}

func (s *service) publish(ctx context.Context, header OrderHeader, result *Result) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderCreated(ctx, header, result); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order.notification.failed")
	}
}

func dropRemaining(results []LineResult, lines []pricing.CartLine, from int, err error) {
	for i := from; i < len(lines); i++ {
		results[i] = LineResult{Index: i, ProductID: lines[i].ProductID, Outcome: LineDropped, Err: err}
	}
}

func errorStrings(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
