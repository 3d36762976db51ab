package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medeasy/rx/domain"
)

// HTTPAnalyzer calls a vision service that accepts {"image_url": ...} on
// POST {BaseURL}/analyze.
type HTTPAnalyzer struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPAnalyzer(baseURL string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPAnalyzer) Analyze(ctx context.Context, imageRef string) (domain.AIAnalysisResult, error) {
	body, err := json.Marshal(map[string]string{"image_url": imageRef})
	if err != nil {
		return domain.AIAnalysisResult{}, fmt.Errorf("encode vision request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return domain.AIAnalysisResult{}, fmt.Errorf("build vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.AIAnalysisResult{}, fmt.Errorf("call vision service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.AIAnalysisResult{}, fmt.Errorf("read vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.AIAnalysisResult{}, fmt.Errorf("vision service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return decodeResult(raw)
}
