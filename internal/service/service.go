// Package service orchestrates the prescription pipeline: it reads stock and
// catalog through repositories, runs the matching and workflow rules, stores
// the outcome and announces lifecycle changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medeasy/rx/domain"
	"medeasy/rx/internal/events"
	"medeasy/rx/internal/repository"
	"medeasy/rx/internal/workflow"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrDuplicate    = errors.New("duplicate")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("invalid credentials")
)

// ValidationError carries every violation found in a quote.
type ValidationError struct {
	Violations []domain.Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0].Message
	}
	return fmt.Sprintf("quote has %d violations", len(e.Violations))
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID     string
	Role       string
	PharmacyID string
}

func (a Actor) IsStaff() bool {
	return (a.Role == domain.RoleOwner || a.Role == domain.RoleEmployee) && a.PharmacyID != ""
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// StockReader fetches one pharmacy's live inventory.
type StockReader interface {
	ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.StockItem, error)
}

// CatalogReader fetches catalog entries filtered by a search term.
type CatalogReader interface {
	List(ctx context.Context, term string) ([]domain.CatalogEntry, error)
}

type PharmacyReader interface {
	Get(ctx context.Context, id string) (domain.Pharmacy, error)
}

type RequestStore interface {
	Create(ctx context.Context, req domain.PrescriptionRequest) error
	Get(ctx context.Context, id string) (domain.PrescriptionRequest, error)
	ListByPharmacy(ctx context.Context, pharmacyID string, status domain.Status) ([]domain.PrescriptionRequest, error)
	Transition(ctx context.Context, next domain.PrescriptionRequest, expected domain.Status) error
}

const tracerName = "medeasy/rx/service"

func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// storeError translates repository failures into service errors.
func storeError(what string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	case errors.Is(err, repository.ErrStaleState):
		return fmt.Errorf("%s: %w: %w", what, workflow.ErrInvalidTransition, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func publish(ctx context.Context, p events.Publisher, eventType string, req domain.PrescriptionRequest, at time.Time) {
	if p == nil {
		return
	}
	ev := domain.RequestEvent{
		Type:       eventType,
		RequestID:  req.ID,
		PharmacyID: req.TargetPharmacyID,
		Status:     req.Status,
		At:         at,
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Printf("failed to publish %s for request %s: %v", eventType, req.ID, err)
	}
}
