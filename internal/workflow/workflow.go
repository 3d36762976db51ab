// Package workflow is the single source of truth for which lifecycle moves a
// prescription request may make.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"medeasy/rx/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTargetCount       = errors.New("a prescription request targets exactly one pharmacy")
	ErrWrongPharmacy     = errors.New("quote is not from the target pharmacy")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrNoItems           = errors.New("at least one named item is required")
	ErrMissingImage      = errors.New("image reference is required")
	ErrMissingCustomer   = errors.New("customer is required")
)

// TransitionError describes an action attempted from a state that does not
// allow it.
type TransitionError struct {
	From   domain.Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

type CreateInput struct {
	ID                string
	CustomerID        string
	ImageRef          string
	TargetPharmacyIDs []string
	Analysis          *domain.AIAnalysisResult
	ExpiresAt         *time.Time
	Now               time.Time
}

// Create builds a new request. Requests without an analysis, or whose
// analysis is at least threshold confident, wait for quotes straight away;
// the rest go to pharmacist review first.
func Create(in CreateInput, threshold float64) (domain.PrescriptionRequest, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return domain.PrescriptionRequest{}, ErrMissingCustomer
	}
	if strings.TrimSpace(in.ImageRef) == "" {
		return domain.PrescriptionRequest{}, ErrMissingImage
	}
	targets := distinct(in.TargetPharmacyIDs)
	if len(targets) != 1 {
		return domain.PrescriptionRequest{}, fmt.Errorf("%w: got %d", ErrTargetCount, len(targets))
	}

	status := domain.StatusWaitingForQuotes
	var analysis *domain.AIAnalysisResult
	if in.Analysis != nil {
		a := *in.Analysis
		a.SuggestedItems = append([]domain.SuggestedItem(nil), in.Analysis.SuggestedItems...)
		analysis = &a
		if a.Confidence < threshold {
			status = domain.StatusUnderReview
		}
	}
	return domain.PrescriptionRequest{
		ID:               in.ID,
		CustomerID:       in.CustomerID,
		ImageRef:         strings.TrimSpace(in.ImageRef),
		TargetPharmacyID: targets[0],
		Status:           status,
		AIAnalysis:       analysis,
		CreatedAt:        in.Now,
		UpdatedAt:        in.Now,
		ExpiresAt:        in.ExpiresAt,
	}, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Event is an action applied to a request.
type Event interface {
	action() string
}

// Revise records a pharmacist-corrected item list on a request under review.
type Revise struct{ Items []domain.SuggestedItem }

// SubmitQuote attaches the target pharmacy's quote.
type SubmitQuote struct{ Quote domain.Quote }

// Reject marks the prescription illegible with a visible reason.
type Reject struct{ Reason string }

// Expire closes a request whose deadline an outside caller decided has passed.
type Expire struct{}

func (Revise) action() string      { return "revise" }
func (SubmitQuote) action() string { return "submit quote" }
func (Reject) action() string      { return "reject" }
func (Expire) action() string      { return "expire" }

// allowed lists the states each action may start from.
var allowed = map[string][]domain.Status{
	"revise":       {domain.StatusUnderReview},
	"submit quote": {domain.StatusWaitingForQuotes},
	"reject":       {domain.StatusWaitingForQuotes, domain.StatusUnderReview},
	"expire":       {domain.StatusWaitingForQuotes, domain.StatusUnderReview},
}

// EventType maps an event to the lifecycle event published after it.
func EventType(ev Event) string {
	switch ev.(type) {
	case Revise:
		return domain.EventRequestRevised
	case SubmitQuote:
		return domain.EventRequestQuoted
	case Reject:
		return domain.EventRequestRejected
	case Expire:
		return domain.EventRequestExpired
	}
	return ""
}

// CanApply reports whether ev is legal from status.
func CanApply(status domain.Status, ev Event) bool {
	for _, s := range allowed[ev.action()] {
		if s == status {
			return true
		}
	}
	return false
}

// Apply returns req after ev. req itself is never modified; on error the
// caller keeps the state it had.
func Apply(req domain.PrescriptionRequest, ev Event, now time.Time) (domain.PrescriptionRequest, error) {
	if !CanApply(req.Status, ev) {
		return req, &TransitionError{From: req.Status, Action: ev.action()}
	}
	next := req
	next.UpdatedAt = now

	switch e := ev.(type) {
	case Revise:
		items := cleanItems(e.Items)
		if len(items) == 0 {
			return req, ErrNoItems
		}
		next.ReviewedItems = items
		next.Status = domain.StatusWaitingForQuotes
	case SubmitQuote:
		if req.Quote != nil {
			return req, &TransitionError{From: req.Status, Action: ev.action()}
		}
		if e.Quote.PharmacyID != req.TargetPharmacyID {
			return req, ErrWrongPharmacy
		}
		q := e.Quote
		q.RequestID = req.ID
		next.Quote = &q
		next.Status = domain.StatusQuoted
	case Reject:
		reason := strings.TrimSpace(e.Reason)
		if reason == "" {
			return req, ErrReasonRequired
		}
		next.RejectionReason = &reason
		next.Status = domain.StatusIllegible
	case Expire:
		next.Status = domain.StatusExpired
	}
	return next, nil
}

func cleanItems(items []domain.SuggestedItem) []domain.SuggestedItem {
	var out []domain.SuggestedItem
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, domain.SuggestedItem{Name: name, Quantity: qty})
	}
	return out
}

// Due reports whether the request carries a deadline that has passed and is
// still in a state that can expire.
func Due(req domain.PrescriptionRequest, now time.Time) bool {
	if req.ExpiresAt == nil || !CanApply(req.Status, Expire{}) {
		return false
	}
	return !now.Before(*req.ExpiresAt)
}
