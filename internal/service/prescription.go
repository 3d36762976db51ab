package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"medeasy/rx/domain"
	"medeasy/rx/internal/events"
	"medeasy/rx/internal/quote"
	"medeasy/rx/internal/stocklink"
	"medeasy/rx/internal/vision"
	"medeasy/rx/internal/workflow"
)

type PrescriptionOptions struct {
	// ConfidenceThreshold is the analysis confidence at or above which a new
	// request skips review.
	ConfidenceThreshold float64
	VisionTimeout       time.Duration
	Clock               func() time.Time
	NewID               func() string
	Tracer              trace.Tracer
}

type PrescriptionService struct {
	requests   RequestStore
	stock      StockReader
	pharmacies PharmacyReader
	analyzer   vision.Analyzer
	publisher  events.Publisher

	threshold     float64
	visionTimeout time.Duration
	now           func() time.Time
	newID         func() string
	tracer        trace.Tracer
}

// NewPrescriptionService wires the pipeline. A nil analyzer disables
// automatic reading; a nil publisher disables events.
func NewPrescriptionService(requests RequestStore, stock StockReader, pharmacies PharmacyReader, analyzer vision.Analyzer, publisher events.Publisher, opts PrescriptionOptions) *PrescriptionService {
	s := &PrescriptionService{
		requests:      requests,
		stock:         stock,
		pharmacies:    pharmacies,
		analyzer:      analyzer,
		publisher:     publisher,
		threshold:     opts.ConfidenceThreshold,
		visionTimeout: opts.VisionTimeout,
		now:           opts.Clock,
		newID:         opts.NewID,
		tracer:        opts.Tracer,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

type CreateRequestInput struct {
	ImageRef    string
	PharmacyIDs []string
	ExpiresAt   *time.Time
}

// CreateRequest submits a prescription image to exactly one pharmacy. The
// image is read by the vision service first when one is configured.
func (s *PrescriptionService) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (req domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.CreateRequest")
	defer func() { endSpan(span, err) }()

	if actor.Role != domain.RoleCustomer {
		return domain.PrescriptionRequest{}, fmt.Errorf("only customers submit prescriptions: %w", ErrForbidden)
	}
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return domain.PrescriptionRequest{}, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidInput)
	}
	create := workflow.CreateInput{
		ID:                s.newID(),
		CustomerID:        actor.UserID,
		ImageRef:          in.ImageRef,
		TargetPharmacyIDs: in.PharmacyIDs,
		ExpiresAt:         in.ExpiresAt,
		Now:               now,
	}
	// Reject bad input before paying for a vision call.
	draft, err := workflow.Create(create, s.threshold)
	if err != nil {
		return domain.PrescriptionRequest{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, err := s.pharmacies.Get(ctx, draft.TargetPharmacyID); err != nil {
		return domain.PrescriptionRequest{}, storeError("target pharmacy", err)
	}

	create.Analysis = vision.AnalyzeWithFallback(ctx, s.analyzer, draft.ImageRef, s.visionTimeout)
	req, err = workflow.Create(create, s.threshold)
	if err != nil {
		return domain.PrescriptionRequest{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return domain.PrescriptionRequest{}, storeError("store request", err)
	}
	publish(ctx, s.publisher, domain.EventRequestCreated, req, now)
	return req, nil
}

// GetRequest returns a request visible to actor. A request whose deadline has
// passed is expired on the way out.
func (s *PrescriptionService) GetRequest(ctx context.Context, actor Actor, id string) (req domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.GetRequest")
	defer func() { endSpan(span, err) }()

	req, err = s.requests.Get(ctx, id)
	if err != nil {
		return domain.PrescriptionRequest{}, storeError("request "+id, err)
	}
	if !canView(actor, req) {
		return domain.PrescriptionRequest{}, fmt.Errorf("request %s: %w", id, ErrForbidden)
	}
	return s.expireIfDue(ctx, req), nil
}

// ListForPharmacy lists requests addressed to the actor's pharmacy. An empty
// status lists every state.
func (s *PrescriptionService) ListForPharmacy(ctx context.Context, actor Actor, status domain.Status) (reqs []domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.ListForPharmacy")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return nil, fmt.Errorf("pharmacy staff only: %w", ErrForbidden)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	reqs, err = s.requests.ListByPharmacy(ctx, actor.PharmacyID, status)
	if err != nil {
		return nil, storeError("list requests", err)
	}
	out := reqs[:0]
	for _, r := range reqs {
		r = s.expireIfDue(ctx, r)
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Proposal links the request's suggested items to the pharmacy's current
// stock, giving the pharmacist a pre-filled quote to edit.
func (s *PrescriptionService) Proposal(ctx context.Context, actor Actor, id string) (lines []domain.QuoteLineItem, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.Proposal")
	defer func() { endSpan(span, err) }()

	req, err := s.staffRequest(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanApply(req.Status, workflow.SubmitQuote{}) {
		return nil, &workflow.TransitionError{From: req.Status, Action: "propose a quote"}
	}
	stock, err := s.stock.ListByPharmacy(ctx, req.TargetPharmacyID)
	if err != nil {
		return nil, storeError("load stock", err)
	}
	lines = stocklink.LinkSuggestedItems(req.SuggestionSet(), stock)
	if lines == nil {
		lines = []domain.QuoteLineItem{}
	}
	return lines, nil
}

// QuoteLineInput is one line as edited by the pharmacist. StockItemID links
// the line to inventory; unlinked lines are manual.
type QuoteLineInput struct {
	Name        string
	Quantity    int64
	UnitPrice   decimal.Decimal
	UnitType    string
	StockItemID *string
}

// ValidateQuote checks lines against freshly read stock without submitting.
func (s *PrescriptionService) ValidateQuote(ctx context.Context, actor Actor, id string, in []QuoteLineInput) (violations []domain.Violation, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.ValidateQuote")
	defer func() { endSpan(span, err) }()

	req, err := s.staffRequest(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	_, violations, err = s.checkQuote(ctx, req, in)
	if err != nil {
		return nil, err
	}
	if violations == nil {
		violations = []domain.Violation{}
	}
	return violations, nil
}

// SubmitQuote validates lines against stock read immediately before the
// write and attaches the resulting quote. A concurrent change to stock
// between this read and the commit is not detected.
func (s *PrescriptionService) SubmitQuote(ctx context.Context, actor Actor, id string, in []QuoteLineInput, note string) (next domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.SubmitQuote")
	defer func() { endSpan(span, err) }()

	req, err := s.staffRequest(ctx, actor, id)
	if err != nil {
		return domain.PrescriptionRequest{}, err
	}
	if !workflow.CanApply(req.Status, workflow.SubmitQuote{}) {
		return domain.PrescriptionRequest{}, &workflow.TransitionError{From: req.Status, Action: "submit quote"}
	}
	lines, violations, err := s.checkQuote(ctx, req, in)
	if err != nil {
		return domain.PrescriptionRequest{}, err
	}
	if len(violations) > 0 {
		return domain.PrescriptionRequest{}, &ValidationError{Violations: violations}
	}
	pharmacy, err := s.pharmacies.Get(ctx, req.TargetPharmacyID)
	if err != nil {
		return domain.PrescriptionRequest{}, storeError("target pharmacy", err)
	}
	q, err := quote.Build(quote.BuildInput{
		ID:           s.newID(),
		RequestID:    req.ID,
		PharmacyID:   pharmacy.ID,
		PharmacyName: pharmacy.Name,
		Items:        lines,
		Note:         note,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return domain.PrescriptionRequest{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.transition(ctx, req, workflow.SubmitQuote{Quote: q})
}

// Reject marks the prescription illegible with a reason the customer sees.
func (s *PrescriptionService) Reject(ctx context.Context, actor Actor, id, reason string) (next domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.Reject")
	defer func() { endSpan(span, err) }()

	req, err := s.staffRequest(ctx, actor, id)
	if err != nil {
		return domain.PrescriptionRequest{}, err
	}
	return s.transition(ctx, req, workflow.Reject{Reason: reason})
}

// Revise records the pharmacist's corrected item list and releases the
// request for quoting.
func (s *PrescriptionService) Revise(ctx context.Context, actor Actor, id string, items []domain.SuggestedItem) (next domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.Revise")
	defer func() { endSpan(span, err) }()

	req, err := s.staffRequest(ctx, actor, id)
	if err != nil {
		return domain.PrescriptionRequest{}, err
	}
	return s.transition(ctx, req, workflow.Revise{Items: items})
}

// Expire closes an open request. Only the operator may do this directly.
func (s *PrescriptionService) Expire(ctx context.Context, actor Actor, id string) (next domain.PrescriptionRequest, err error) {
	ctx, span := startSpan(ctx, s.tracer, "PrescriptionService.Expire")
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		return domain.PrescriptionRequest{}, fmt.Errorf("operator only: %w", ErrForbidden)
	}
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return domain.PrescriptionRequest{}, storeError("request "+id, err)
	}
	return s.transition(ctx, req, workflow.Expire{})
}

func (s *PrescriptionService) transition(ctx context.Context, req domain.PrescriptionRequest, ev workflow.Event) (domain.PrescriptionRequest, error) {
	now := s.now()
	next, err := workflow.Apply(req, ev, now)
	if err != nil {
		return req, workflowError(err)
	}
	if err := s.requests.Transition(ctx, next, req.Status); err != nil {
		return req, storeError("store request "+req.ID, err)
	}
	publish(ctx, s.publisher, workflow.EventType(ev), next, now)
	return next, nil
}

func (s *PrescriptionService) expireIfDue(ctx context.Context, req domain.PrescriptionRequest) domain.PrescriptionRequest {
	if !workflow.Due(req, s.now()) {
		return req
	}
	next, err := s.transition(ctx, req, workflow.Expire{})
	if err == nil {
		return next
	}
	if errors.Is(err, workflow.ErrInvalidTransition) {
		// Someone else moved it first; show what is stored now.
		if fresh, gerr := s.requests.Get(ctx, req.ID); gerr == nil {
			return fresh
		}
	}
	log.Printf("failed to expire request %s: %v", req.ID, err)
	return req
}

func (s *PrescriptionService) staffRequest(ctx context.Context, actor Actor, id string) (domain.PrescriptionRequest, error) {
	if !actor.IsStaff() {
		return domain.PrescriptionRequest{}, fmt.Errorf("pharmacy staff only: %w", ErrForbidden)
	}
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return domain.PrescriptionRequest{}, storeError("request "+id, err)
	}
	if req.TargetPharmacyID != actor.PharmacyID {
		return domain.PrescriptionRequest{}, fmt.Errorf("request %s: %w", id, ErrForbidden)
	}
	return s.expireIfDue(ctx, req), nil
}

// checkQuote turns pharmacist input into quote lines priced and snapshotted
// against live stock, and validates them.
func (s *PrescriptionService) checkQuote(ctx context.Context, req domain.PrescriptionRequest, in []QuoteLineInput) ([]domain.QuoteLineItem, []domain.Violation, error) {
	stock, err := s.stock.ListByPharmacy(ctx, req.TargetPharmacyID)
	if err != nil {
		return nil, nil, storeError("load stock", err)
	}
	lookup := quote.LookupFrom(stock)
	lines := make([]domain.QuoteLineItem, 0, len(in))
	for _, l := range in {
		lines = append(lines, toLine(l, lookup))
	}
	return lines, quote.Validate(lines, lookup), nil
}

func toLine(in QuoteLineInput, lookup quote.StockLookup) domain.QuoteLineItem {
	if in.StockItemID == nil || strings.TrimSpace(*in.StockItemID) == "" {
		return quote.ManualLine(in.Name, in.Quantity, in.UnitPrice, in.UnitType)
	}
	id := strings.TrimSpace(*in.StockItemID)
	item, ok := lookup(id)
	if !ok {
		// Left linked so validation reports it as unavailable.
		line := quote.ManualLine(in.Name, in.Quantity, in.UnitPrice, in.UnitType)
		line.LinkedStockItemID = &id
		return line
	}
	line := quote.StockLine(item, in.Quantity)
	if !in.UnitPrice.IsZero() {
		line.UnitPrice = in.UnitPrice
	}
	if strings.TrimSpace(in.UnitType) != "" {
		line.UnitType = in.UnitType
	}
	return line
}

func canView(actor Actor, req domain.PrescriptionRequest) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.Role == domain.RoleCustomer:
		return actor.UserID == req.CustomerID
	case actor.IsStaff():
		return actor.PharmacyID == req.TargetPharmacyID
	}
	return false
}

func workflowError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		return err
	case errors.Is(err, workflow.ErrWrongPharmacy):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
