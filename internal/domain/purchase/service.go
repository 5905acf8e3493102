// Package purchase implements the purchase-order workflow: building an order
// with its items, writing both atomically, and reading back the joined view.
package purchase

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/clinic-purchase/internal/bid"
)

const instrumentationName = "github.com/xenking/clinic-purchase/internal/domain/purchase"

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for service counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithClock overrides the clock used to default the purchase date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service encapsulates the purchase order workflow.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	created        metric.Int64Counter
	createdItems   metric.Int64Counter
}

// NewService creates a purchase Service backed by repo.
func NewService(repo Repository, opts ...Option) (*Service, error) {
	s := &Service{
		repo:           repo,
		validate:       newValidator(),
		now:            time.Now,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.created, err = meter.Int64Counter("purchase.orders.created",
		metric.WithDescription("Purchase orders written"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	if s.createdItems, err = meter.Int64Counter("purchase.items.created",
		metric.WithDescription("Purchase items written"),
	); err != nil {
		return nil, errors.Wrap(err, "create items counter")
	}

	return s, nil
}

// Create validates and writes a new purchase order with its items in one
// transaction and returns the textual identifier of the order.
func (s *Service) Create(ctx context.Context, order *OrderInput, items []ItemInput) (_ string, rerr error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Create")
	defer func() { endSpan(span, rerr) }()

	if order == nil || len(items) == 0 {
		return "", &ValidationError{
			Reason: "a valid purchase order and at least one purchase item must be provided " +
				"under the attributes purchase_order and purchase_item",
		}
	}
	if err := s.validateInput(order, items); err != nil {
		return "", err
	}

	agg, err := Build(*order, items, s.now())
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.String("purchase.uuid", agg.Order.UUID.String()),
		attribute.Int("purchase.items", len(agg.Items)),
	)

	if err := s.repo.Create(ctx, agg); err != nil {
		return "", errors.Wrap(err, "create purchase")
	}

	s.created.Add(ctx, 1)
	s.createdItems.Add(ctx, int64(len(agg.Items)))

	return agg.Order.UUID.String(), nil
}

// Read returns the purchase order with its items.
func (s *Service) Read(ctx context.Context, id string) (_ *Detail, rerr error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Read", trace.WithAttributes(
		attribute.String("purchase.uuid", id),
	))
	defer func() { endSpan(span, rerr) }()

	key, err := parseID(id, "uuid")
	if err != nil {
		return nil, err
	}
	return s.read(ctx, key)
}

func (s *Service) read(ctx context.Context, id bid.BID) (*Detail, error) {
	var (
		header *DetailSummary
		items  []ItemView
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.repo.FindHeader(gctx, id)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	g.Go(func() error {
		it, err := s.repo.FindItems(gctx, id)
		if err != nil {
			return err
		}
		items = it
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{ID: id.String()}
		}
		return nil, errors.Wrap(err, "read purchase")
	}

	if items == nil {
		items = []ItemView{}
	}
	return &Detail{DetailSummary: *header, Items: items}, nil
}

// Update applies a partial update to the purchase header and returns the
// re-read order. Items are left as they are.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (_ *Detail, rerr error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Update", trace.WithAttributes(
		attribute.String("purchase.uuid", id),
	))
	defer func() { endSpan(span, rerr) }()

	key, err := parseID(id, "uuid")
	if err != nil {
		return nil, err
	}
	set, err := patch.Assignments()
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, &ValidationError{Reason: "no purchase fields to update"}
	}

	found, err := s.repo.Update(ctx, key, set)
	if err != nil {
		return nil, errors.Wrap(err, "update purchase")
	}
	if !found {
		return nil, &NotFoundError{ID: key.String()}
	}

	return s.read(ctx, key)
}

// ListSummaries returns the summary projection of all orders in insertion order.
func (s *Service) ListSummaries(ctx context.Context) (_ []Summary, rerr error) {
	ctx, span := s.tracer.Start(ctx, "purchase.ListSummaries")
	defer func() { endSpan(span, rerr) }()

	rows, err := s.repo.ListSummaries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list purchases")
	}
	return rows, nil
}

// ListDetailed returns the complete projection of all orders in insertion order.
func (s *Service) ListDetailed(ctx context.Context) (_ []DetailSummary, rerr error) {
	ctx, span := s.tracer.Start(ctx, "purchase.ListDetailed")
	defer func() { endSpan(span, rerr) }()

	rows, err := s.repo.ListDetailed(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list detailed purchases")
	}
	return rows, nil
}

// ReferenceExists reports whether any stored order carries the reference.
func (s *Service) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	ok, err := s.repo.ReferenceExists(ctx, reference)
	if err != nil {
		return false, errors.Wrapf(err, "check reference %q", reference)
	}
	return ok, nil
}

// References returns the references of all stored orders.
func (s *Service) References(ctx context.Context) ([]string, error) {
	refs, err := s.repo.References(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list references")
	}
	return refs, nil
}

func (s *Service) validateInput(order *OrderInput, items []ItemInput) error {
	if err := s.validate.Struct(order); err != nil {
		return validationError("purchase_order", err)
	}
	for i := range items {
		if err := s.validate.Struct(&items[i]); err != nil {
			return validationError(fmt.Sprintf("purchase_item[%d]", i), err)
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(prefix string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Field: prefix, Reason: err.Error()}
	}

	fields := make([]string, 0, len(fieldErrs))
	reasons := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, prefix+"."+fe.Field())
		reasons = append(reasons, describeTag(fe))
	}
	if len(fields) == 1 {
		return &ValidationError{Field: fields[0], Reason: reasons[0]}
	}

	parts := make([]string, len(fields))
	for i := range fields {
		parts[i] = fields[i] + " " + reasons[i]
	}
	return &ValidationError{Reason: strings.Join(parts, "; ")}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
