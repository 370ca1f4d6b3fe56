package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config carries the process-wide AI configuration resolved by pkg/aiconfig
// (api_key, model, base_url, per-task overrides) (§6).
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	ScoringModel string
	MetaModel    string
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint (§6:
// "POST {base_url}/chat/completions" with response_format json_object).
// One HTTPClient is shared across scoring/meta-analysis calls for a
// process; the rate limiter smooths bursts from concurrent system runs.
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
}

// NewHTTPClient builds a chat-completions client. ratePerSecond bounds
// outbound request rate (adaptive cost budget); burst allows short spikes.
func NewHTTPClient(cfg Config, ratePerSecond float64, burst int) *HTTPClient {
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	if burst <= 0 {
		burst = 4
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		cfg:        cfg,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatCompletionChoice struct {
	Message chatMessage `json:"message"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
	Usage   chatCompletionUsage    `json:"usage"`
}

// call issues one chat-completions request and returns the raw message
// content plus token usage. model falls back to cfg.Model if empty.
func (c *HTTPClient) call(ctx context.Context, model, systemPrompt, userPrompt string) (string, Usage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", Usage{}, fmt.Errorf("llm: rate limiter wait: %w", err)
	}
	if model == "" {
		model = c.cfg.Model
	}

	reqBody := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.1,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", Usage{}, fmt.Errorf("llm: %s returned %d: %s", url, resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("llm: response had no choices")
	}

	usage := Usage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		RequestCount: 1,
	}
	return parsed.Choices[0].Message.Content, usage, nil
}

// stripMarkdownFence unwraps a ```json ... ``` or ``` ... ``` fence around a
// JSON body, returning the content unchanged if no fence is present (§6).
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		firstLine := strings.TrimSpace(s[:i])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ScoreEvents implements Client.ScoreEvents (§4.F). Responses may be
// {scores:[...]}, a bare array, or fenced JSON; any other shape scores
// everything zero rather than failing the run.
func (c *HTTPClient) ScoreEvents(ctx context.Context, events []EventForScoring, systemDescription string, sourceLabels []string, opts ScoreEventsOptions) (ScoreEventsResult, Usage, error) {
	userPrompt := buildScoringUserPrompt(events, systemDescription, sourceLabels)
	raw, usage, err := c.call(ctx, opts.Model, opts.SystemPrompt, userPrompt)
	if err != nil {
		return zeroScores(len(events)), usage, err
	}

	scores, ok := parseScoresResponse(raw)
	if !ok {
		slog.Warn("llm: scoreEvents response unparseable, falling back to zero scores")
		return zeroScores(len(events)), usage, nil
	}
	return padScores(scores, len(events)), usage, nil
}

func zeroScores(n int) ScoreEventsResult {
	scores := make([]CriterionScores, n)
	for i := range scores {
		scores[i] = CriterionScores{}
	}
	return ScoreEventsResult{Scores: scores}
}

func padScores(scores []CriterionScores, n int) ScoreEventsResult {
	out := make([]CriterionScores, n)
	for i := 0; i < n; i++ {
		if i < len(scores) {
			out[i] = scores[i]
		} else {
			out[i] = CriterionScores{}
		}
	}
	return ScoreEventsResult{Scores: out}
}

func parseScoresResponse(raw string) ([]CriterionScores, bool) {
	body := stripMarkdownFence(raw)

	var wrapped struct {
		Scores []CriterionScores `json:"scores"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err == nil && wrapped.Scores != nil {
		return wrapped.Scores, true
	}

	var bare []CriterionScores
	if err := json.Unmarshal([]byte(body), &bare); err == nil {
		return bare, true
	}

	return nil, false
}

// MetaAnalyze implements Client.MetaAnalyze (§4.H step 12).
func (c *HTTPClient) MetaAnalyze(ctx context.Context, events []EventForScoring, systemDescription string, sourceLabels []string, metaCtx MetaAnalyzeContext, opts MetaAnalyzeOptions) (MetaAnalyzeResult, Usage, error) {
	userPrompt := buildMetaUserPrompt(events, systemDescription, sourceLabels, metaCtx)
	raw, usage, err := c.call(ctx, opts.Model, opts.SystemPrompt, userPrompt)
	if err != nil {
		return MetaAnalyzeResult{}, usage, err
	}

	body := stripMarkdownFence(raw)
	var result MetaAnalyzeResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		slog.Warn("llm: metaAnalyze response unparseable", "error", err)
		return MetaAnalyzeResult{}, usage, fmt.Errorf("llm: decode metaAnalyze content: %w", err)
	}
	return result, usage, nil
}
