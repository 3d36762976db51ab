package domain

import "time"

// Status is the lifecycle state of a PrescriptionRequest.
type Status string

const (
	StatusWaitingForQuotes Status = "WAITING_FOR_QUOTES"
	StatusUnderReview      Status = "UNDER_REVIEW"
	StatusIllegible        Status = "ILLEGIBLE"
	StatusExpired          Status = "EXPIRED"
	StatusQuoted           Status = "QUOTED"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusIllegible, StatusExpired, StatusQuoted:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaitingForQuotes, StatusUnderReview, StatusIllegible, StatusExpired, StatusQuoted:
		return true
	}
	return false
}

// SuggestedItem is a medication name and quantity read off a prescription,
// either by the vision service or by a pharmacist correcting it.
type SuggestedItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// AIAnalysisResult is produced once by the vision service per request.
type AIAnalysisResult struct {
	Confidence     float64         `json:"confidence"`
	ExtractedText  string          `json:"extracted_text"`
	SuggestedItems []SuggestedItem `json:"suggested_items"`
}

type PrescriptionRequest struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customer_id"`
	ImageRef         string            `json:"image_ref"`
	TargetPharmacyID string            `json:"target_pharmacy_id"`
	Status           Status            `json:"status"`
	AIAnalysis       *AIAnalysisResult `json:"ai_analysis,omitempty"`
	ReviewedItems    []SuggestedItem   `json:"reviewed_items,omitempty"`
	RejectionReason  *string           `json:"rejection_reason,omitempty"`
	Quote            *Quote            `json:"quote,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
}

// SuggestionSet returns the pharmacist-reviewed items when present, falling
// back to what the vision service read.
func (r PrescriptionRequest) SuggestionSet() []SuggestedItem {
	if len(r.ReviewedItems) > 0 {
		return r.ReviewedItems
	}
	if r.AIAnalysis != nil {
		return r.AIAnalysis.SuggestedItems
	}
	return nil
}

const (
	EventRequestCreated  = "prescription.created"
	EventRequestRevised  = "prescription.revised"
	EventRequestQuoted   = "prescription.quoted"
	EventRequestRejected = "prescription.rejected"
	EventRequestExpired  = "prescription.expired"
)

// RequestEvent announces a lifecycle change of a prescription request.
type RequestEvent struct {
	Type       string    `json:"type"`
	RequestID  string    `json:"request_id"`
	PharmacyID string    `json:"pharmacy_id"`
	Status     Status    `json:"status"`
	At         time.Time `json:"at"`
}
