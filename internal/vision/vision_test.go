package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"medeasy/rx/domain"
)

type stubAnalyzer struct {
	res domain.AIAnalysisResult
	err error
}

func (s stubAnalyzer) Analyze(context.Context, string) (domain.AIAnalysisResult, error) {
	return s.res, s.err
}

type blockingAnalyzer struct{}

func (blockingAnalyzer) Analyze(ctx context.Context, _ string) (domain.AIAnalysisResult, error) {
	<-ctx.Done()
	return domain.AIAnalysisResult{}, ctx.Err()
}

func TestAnalyzeWithFallbackNilAnalyzer(t *testing.T) {
	if res := AnalyzeWithFallback(context.Background(), nil, "img", time.Second); res != nil {
		t.Fatalf("expected no result without a vision service, got %+v", res)
	}
}

func TestAnalyzeWithFallbackOnError(t *testing.T) {
	res := AnalyzeWithFallback(context.Background(), stubAnalyzer{err: errors.New("boom")}, "img", time.Second)
	if res == nil || res.Confidence != 0 || res.ExtractedText != FallbackText || len(res.SuggestedItems) != 0 {
		t.Fatalf("expected fallback result, got %+v", res)
	}
}

func TestAnalyzeWithFallbackOnTimeout(t *testing.T) {
	start := time.Now()
	res := AnalyzeWithFallback(context.Background(), blockingAnalyzer{}, "img", 20*time.Millisecond)
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not applied")
	}
	if res == nil || res.Confidence != 0 {
		t.Fatalf("expected fallback result, got %+v", res)
	}
}

func TestAnalyzeWithFallbackSanitizes(t *testing.T) {
	res := AnalyzeWithFallback(context.Background(), stubAnalyzer{res: domain.AIAnalysisResult{
		Confidence: 1.7,
		SuggestedItems: []domain.SuggestedItem{
			{Name: " Dipirona 500mg ", Quantity: 0},
			{Name: "  ", Quantity: 2},
		},
	}}, "img", time.Second)
	if res.Confidence != 0 {
		t.Fatalf("out of range confidence should become 0, got %v", res.Confidence)
	}
	if len(res.SuggestedItems) != 1 || res.SuggestedItems[0].Name != "Dipirona 500mg" || res.SuggestedItems[0].Quantity != 1 {
		t.Fatalf("unexpected items %+v", res.SuggestedItems)
	}
}

func TestHTTPAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["image_url"] != "https://img.example/rx.jpg" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"confidence":0.82,"extractedText":"Amoxicilina 500mg 2cx","suggestedItems":[{"name":"Amoxicilina 500mg","quantity":2}]}`))
	}))
	defer srv.Close()

	res, err := NewHTTPAnalyzer(srv.URL+"/", time.Second).Analyze(context.Background(), "https://img.example/rx.jpg")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Confidence != 0.82 || len(res.SuggestedItems) != 1 || res.SuggestedItems[0].Quantity != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestHTTPAnalyzerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPAnalyzer(srv.URL, time.Second).Analyze(context.Background(), "img")
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

type mockMessager struct {
	response *anthropic.Message
	err      error
	params   anthropic.MessageNewParams
}

func (m *mockMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.response, m.err
}

func newMockMessage(text string) *anthropic.Message {
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}}}
}

func TestAnthropicAnalyzer(t *testing.T) {
	mock := &mockMessager{response: newMockMessage("```json\n{\"confidence\":0.4,\"extractedText\":\"dipirona\",\"suggestedItems\":[{\"name\":\"Dipirona\",\"quantity\":1}]}\n```")}
	res, err := newAnthropicAnalyzerWith(mock).Analyze(context.Background(), "https://img.example/rx.jpg")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Confidence != 0.4 || len(res.SuggestedItems) != 1 || res.SuggestedItems[0].Name != "Dipirona" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(mock.params.Messages) != 1 || len(mock.params.Messages[0].Content) != 2 {
		t.Fatalf("expected one user message with image and prompt, got %+v", mock.params.Messages)
	}
}

func TestAnthropicAnalyzerErrors(t *testing.T) {
	if _, err := newAnthropicAnalyzerWith(&mockMessager{err: errors.New("rate limited")}).Analyze(context.Background(), "img"); err == nil {
		t.Fatal("expected transport error")
	}
	if _, err := newAnthropicAnalyzerWith(&mockMessager{response: newMockMessage("   ")}).Analyze(context.Background(), "img"); err == nil {
		t.Fatal("expected empty response error")
	}
	if _, err := newAnthropicAnalyzerWith(&mockMessager{response: newMockMessage("not json")}).Analyze(context.Background(), "img"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewAnthropicAnalyzer(" "); err == nil {
		t.Fatal("expected missing key error")
	}
}
