// Package judge asks an OpenAI-compatible model whether a negative review
// justifies slashing an agent's stake.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agora/internal/logging"
)

const systemPrompt = `You review marketplace complaints about AI agents. Given a user's review comment and star rating, decide whether the agent genuinely failed to deliver the service. Respond with JSON only: {"slash": true|false, "reasoning": "..."}. Answer true only for concrete service failures, not for tone, price complaints, or vague dissatisfaction.`

// Config describes the judgment model endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMJudge implements domain.Judge over the chat completions API.
type LLMJudge struct {
	cfg    Config
	client *http.Client
	logger logging.Logger
}

// New creates an LLMJudge.
func New(cfg Config, logger logging.Logger) *LLMJudge {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &LLMJudge{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.OrNop(logger),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type verdict struct {
	Slash     bool   `json:"slash"`
	Reasoning string `json:"reasoning"`
}

// Judge returns whether the agent genuinely failed according to the model.
func (j *LLMJudge) Judge(ctx context.Context, comment string, score int) (bool, error) {
	user := fmt.Sprintf("Rating: %d/5\nReview: %s", score, comment)
	req := chatRequest{
		Model: j.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("marshal judge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(j.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if j.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+j.cfg.APIKey)
	}

	resp, err := j.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("call judge model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("read judge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("judge model returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return false, fmt.Errorf("decode judge response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return false, fmt.Errorf("judge response has no choices")
	}

	v, err := parseVerdict(parsed.Choices[0].Message.Content)
	if err != nil {
		return false, err
	}
	j.logger.Debug("judge verdict slash=%v: %s", v.Slash, v.Reasoning)
	return v.Slash, nil
}

// parseVerdict extracts the verdict JSON from the model's reply, tolerating
// markdown fences and surrounding prose.
func parseVerdict(content string) (verdict, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}
	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return verdict{}, fmt.Errorf("parse judge verdict: %w", err)
	}
	return v, nil
}
