package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newRequest(t *testing.T, analysis *domain.AIAnalysisResult) domain.PrescriptionRequest {
	t.Helper()
	req, err := Create(CreateInput{
		ID:                "r1",
		CustomerID:        "c1",
		ImageRef:          "https://img.example/rx.jpg",
		TargetPharmacyIDs: []string{"p1"},
		Analysis:          analysis,
		Now:               now,
	}, 0.6)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return req
}

func testQuote(pharmacyID string) domain.Quote {
	return domain.Quote{ID: "q1", PharmacyID: pharmacyID, PharmacyName: "Central", TotalValue: decimal.NewFromInt(10)}
}

func TestCreateInitialStatus(t *testing.T) {
	for _, tc := range []struct {
		name     string
		analysis *domain.AIAnalysisResult
		want     domain.Status
	}{
		{"no analysis", nil, domain.StatusWaitingForQuotes},
		{"confident", &domain.AIAnalysisResult{Confidence: 0.82}, domain.StatusWaitingForQuotes},
		{"at threshold", &domain.AIAnalysisResult{Confidence: 0.6}, domain.StatusWaitingForQuotes},
		{"low confidence", &domain.AIAnalysisResult{Confidence: 0.2}, domain.StatusUnderReview},
		{"vision fallback", &domain.AIAnalysisResult{Confidence: 0}, domain.StatusUnderReview},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := newRequest(t, tc.analysis).Status; got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCreateRequiresExactlyOneTarget(t *testing.T) {
	for _, targets := range [][]string{nil, {""}, {"p1", "p2"}} {
		_, err := Create(CreateInput{CustomerID: "c1", ImageRef: "img", TargetPharmacyIDs: targets, Now: now}, 0.6)
		if !errors.Is(err, ErrTargetCount) {
			t.Fatalf("targets %v: expected ErrTargetCount, got %v", targets, err)
		}
	}
	req, err := Create(CreateInput{CustomerID: "c1", ImageRef: "img", TargetPharmacyIDs: []string{"p1", " p1 "}, Now: now}, 0.6)
	if err != nil || req.TargetPharmacyID != "p1" {
		t.Fatalf("repeated id should collapse to one target: %v %+v", err, req)
	}
	if _, err := Create(CreateInput{CustomerID: "c1", TargetPharmacyIDs: []string{"p1"}}, 0.6); !errors.Is(err, ErrMissingImage) {
		t.Fatalf("expected ErrMissingImage, got %v", err)
	}
}

func TestCreateCopiesAnalysis(t *testing.T) {
	analysis := &domain.AIAnalysisResult{Confidence: 0.9, SuggestedItems: []domain.SuggestedItem{{Name: "Dipirona", Quantity: 1}}}
	req := newRequest(t, analysis)
	analysis.SuggestedItems[0].Name = "changed"
	if req.AIAnalysis.SuggestedItems[0].Name != "Dipirona" {
		t.Fatal("attached analysis must not alias the caller's slice")
	}
}

func TestSubmitQuote(t *testing.T) {
	req := newRequest(t, nil)
	quoted, err := Apply(req, SubmitQuote{Quote: testQuote("p1")}, now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if quoted.Status != domain.StatusQuoted || quoted.Quote == nil || quoted.Quote.RequestID != "r1" {
		t.Fatalf("unexpected request after submit: %+v", quoted)
	}
	if req.Status != domain.StatusWaitingForQuotes || req.Quote != nil {
		t.Fatal("Apply must not mutate its input")
	}

	_, err = Apply(quoted, SubmitQuote{Quote: testQuote("p1")}, now)
	var te *TransitionError
	if !errors.As(err, &te) || !errors.Is(err, ErrInvalidTransition) || te.From != domain.StatusQuoted {
		t.Fatalf("second submit must be an invalid transition, got %v", err)
	}
}

func TestSubmitQuoteFromOtherPharmacy(t *testing.T) {
	_, err := Apply(newRequest(t, nil), SubmitQuote{Quote: testQuote("p2")}, now)
	if !errors.Is(err, ErrWrongPharmacy) {
		t.Fatalf("expected ErrWrongPharmacy, got %v", err)
	}
}

func TestSubmitQuoteUnderReviewIsRejected(t *testing.T) {
	req := newRequest(t, &domain.AIAnalysisResult{Confidence: 0.2})
	if _, err := Apply(req, SubmitQuote{Quote: testQuote("p1")}, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestReviseThenSubmit(t *testing.T) {
	req := newRequest(t, &domain.AIAnalysisResult{Confidence: 0.2, SuggestedItems: []domain.SuggestedItem{{Name: "Amoxi??", Quantity: 1}}})
	if _, err := Apply(req, Revise{Items: []domain.SuggestedItem{{Name: "  "}}}, now); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	revised, err := Apply(req, Revise{Items: []domain.SuggestedItem{{Name: " Amoxicilina 500mg ", Quantity: 0}}}, now)
	if err != nil {
		t.Fatalf("revise: %v", err)
	}
	if revised.Status != domain.StatusWaitingForQuotes {
		t.Fatalf("expected WAITING_FOR_QUOTES, got %s", revised.Status)
	}
	set := revised.SuggestionSet()
	if len(set) != 1 || set[0].Name != "Amoxicilina 500mg" || set[0].Quantity != 1 {
		t.Fatalf("reviewed items should become the suggestion set: %+v", set)
	}
	if _, err := Apply(revised, Revise{Items: set}, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("revise is only legal under review, got %v", err)
	}
	if _, err := Apply(revised, SubmitQuote{Quote: testQuote("p1")}, now); err != nil {
		t.Fatalf("submit after revise: %v", err)
	}
}

func TestReject(t *testing.T) {
	req := newRequest(t, &domain.AIAnalysisResult{Confidence: 0.2})
	if _, err := Apply(req, Reject{Reason: " "}, now); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	rejected, err := Apply(req, Reject{Reason: "Letra ilegível"}, now)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != domain.StatusIllegible || rejected.RejectionReason == nil || *rejected.RejectionReason != "Letra ilegível" {
		t.Fatalf("unexpected rejected request: %+v", rejected)
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	base := newRequest(t, nil)
	expired, err := Apply(base, Expire{}, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	rejected, _ := Apply(base, Reject{Reason: "ilegível"}, now)
	quoted, _ := Apply(base, SubmitQuote{Quote: testQuote("p1")}, now)

	events := []Event{
		SubmitQuote{Quote: testQuote("p1")},
		Reject{Reason: "x"},
		Revise{Items: []domain.SuggestedItem{{Name: "x", Quantity: 1}}},
		Expire{},
	}
	for _, req := range []domain.PrescriptionRequest{expired, rejected, quoted} {
		if !req.Status.IsTerminal() {
			t.Fatalf("%s should be terminal", req.Status)
		}
		for _, ev := range events {
			after, err := Apply(req, ev, now)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%T from %s: expected invalid transition, got %v", ev, req.Status, err)
			}
			if after.Status != req.Status {
				t.Fatalf("%T from %s changed status to %s", ev, req.Status, after.Status)
			}
		}
	}
}

func TestDue(t *testing.T) {
	req := newRequest(t, nil)
	if Due(req, now.Add(24*time.Hour)) {
		t.Fatal("requests without a deadline are never due")
	}
	deadline := now.Add(time.Hour)
	req.ExpiresAt = &deadline
	if Due(req, now) {
		t.Fatal("not due before the deadline")
	}
	if !Due(req, deadline) {
		t.Fatal("due at the deadline")
	}
	req.Status = domain.StatusQuoted
	if Due(req, deadline.Add(time.Hour)) {
		t.Fatal("terminal requests are never due")
	}
}

func TestEventType(t *testing.T) {
	if EventType(Reject{}) != domain.EventRequestRejected || EventType(Expire{}) != domain.EventRequestExpired {
		t.Fatal("unexpected event type mapping")
	}
}
