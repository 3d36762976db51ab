// Package vision reads medication names off a prescription image through an
// external service. Callers never block on it: any failure degrades to a
// zero-confidence result that sends the request to manual review.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"medeasy/rx/domain"
)

// FallbackText is the extracted text recorded when the service cannot help.
const FallbackText = "Automatic reading unavailable; awaiting manual review."

// Analyzer reads a prescription image by reference.
type Analyzer interface {
	Analyze(ctx context.Context, imageRef string) (domain.AIAnalysisResult, error)
}

// Fallback is the result substituted when analysis fails or times out.
func Fallback() domain.AIAnalysisResult {
	return domain.AIAnalysisResult{
		Confidence:     0,
		ExtractedText:  FallbackText,
		SuggestedItems: []domain.SuggestedItem{},
	}
}

// AnalyzeWithFallback runs a under timeout and returns its result, or the
// fallback when it errors. A nil analyzer means no vision service is
// configured and yields no result at all.
func AnalyzeWithFallback(ctx context.Context, a Analyzer, imageRef string, timeout time.Duration) *domain.AIAnalysisResult {
	if a == nil {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := a.Analyze(ctx, imageRef)
	if err != nil {
		log.Printf("vision analysis failed for %s, falling back to manual review: %v", imageRef, err)
		fb := Fallback()
		return &fb
	}
	res = sanitize(res)
	return &res
}

// wireResult is the JSON shape vision services answer with.
type wireResult struct {
	Confidence     float64 `json:"confidence"`
	ExtractedText  string  `json:"extractedText"`
	SuggestedItems []struct {
		Name     string `json:"name"`
		Quantity int64  `json:"quantity"`
	} `json:"suggestedItems"`
}

func decodeResult(raw []byte) (domain.AIAnalysisResult, error) {
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.AIAnalysisResult{}, fmt.Errorf("decode vision result: %w", err)
	}
	res := domain.AIAnalysisResult{
		Confidence:     w.Confidence,
		ExtractedText:  w.ExtractedText,
		SuggestedItems: make([]domain.SuggestedItem, 0, len(w.SuggestedItems)),
	}
	for _, it := range w.SuggestedItems {
		res.SuggestedItems = append(res.SuggestedItems, domain.SuggestedItem{Name: it.Name, Quantity: it.Quantity})
	}
	return res, nil
}

// sanitize clamps confidence to [0,1] and drops unnamed items.
func sanitize(res domain.AIAnalysisResult) domain.AIAnalysisResult {
	if math.IsNaN(res.Confidence) || res.Confidence < 0 || res.Confidence > 1 {
		log.Printf("invalid vision confidence %f, using 0", res.Confidence)
		res.Confidence = 0
	}
	items := make([]domain.SuggestedItem, 0, len(res.SuggestedItems))
	for _, it := range res.SuggestedItems {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		items = append(items, domain.SuggestedItem{Name: name, Quantity: it.Quantity})
	}
	res.SuggestedItems = items
	return res
}
