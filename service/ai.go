package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/model"
)

const maxAIResponseSize = 4 << 20

// ChatMessage is one turn of a legal chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatQuery is a legal question, optionally about a specific contract.
type ChatQuery struct {
	Message  string
	History  []ChatMessage
	Contract *model.Contract
}

// ChatAnswer is the chat service's reply.
type ChatAnswer struct {
	Response   string   `json:"response"`
	References []string `json:"references"`
	Confidence float64  `json:"confidence"`
}

// Analyzer is the external analysis and legal chat capability.
type Analyzer interface {
	AnalyzeContract(ctx context.Context, c *model.Contract) (*model.AIAnalysis, error)
	Chat(ctx context.Context, q ChatQuery) (*ChatAnswer, error)
}

// AIClient talks to an OpenAI-compatible chat completions endpoint.
type AIClient struct {
	config     *config.AIConfig
	httpClient *http.Client
}

// NewAIClient creates a client for the configured chat completions endpoint.
func NewAIClient(cfg *config.AIConfig) *AIClient {
	return &AIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type completionRequest struct {
	Model          string            `json:"model"`
	Messages       []ChatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const analysisPrompt = `あなたは日本の契約法に精通した法務アシスタントです。与えられた契約書を分析し、次の JSON だけを返してください。
{"summary": string, "keyTerms": [string], "risks": [{"level": "low"|"medium"|"high", "description": string, "clause": string}], "recommendations": [string]}`

const chatPrompt = `あなたは日本の契約法に精通した法務アシスタントです。法的知識に基づいて質問に回答し、次の JSON だけを返してください。
{"response": string, "references": [string], "confidence": number between 0 and 1}`

// AnalyzeContract asks the model for a structured analysis of c.
func (a *AIClient) AnalyzeContract(ctx context.Context, c *model.Contract) (*model.AIAnalysis, error) {
	content, err := a.complete(ctx, []ChatMessage{
		{Role: "system", Content: analysisPrompt},
		{Role: "user", Content: describeContract(c)},
	})
	if err != nil {
		return nil, err
	}

	var analysis model.AIAnalysis
	if err := json.Unmarshal([]byte(extractJSON(content)), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	for i := range analysis.Risks {
		analysis.Risks[i].Level = normalizeSeverity(analysis.Risks[i].Level)
	}
	if analysis.KeyTerms == nil {
		analysis.KeyTerms = []string{}
	}
	if analysis.Risks == nil {
		analysis.Risks = []model.RiskItem{}
	}
	if analysis.Recommendations == nil {
		analysis.Recommendations = []string{}
	}
	return &analysis, nil
}

// Chat answers a legal question, grounding it in the contract when given.
func (a *AIClient) Chat(ctx context.Context, q ChatQuery) (*ChatAnswer, error) {
	messages := []ChatMessage{{Role: "system", Content: chatPrompt}}
	if q.Contract != nil {
		messages = append(messages, ChatMessage{Role: "system", Content: "対象の契約書:\n" + describeContract(q.Contract)})
	}
	for _, m := range q.History {
		if m.Role == "user" || m.Role == "assistant" {
			messages = append(messages, m)
		}
	}
	messages = append(messages, ChatMessage{Role: "user", Content: q.Message})

	content, err := a.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	var answer ChatAnswer
	if err := json.Unmarshal([]byte(extractJSON(content)), &answer); err != nil || answer.Response == "" {
		// Plain-text replies are still usable answers.
		return &ChatAnswer{Response: strings.TrimSpace(content), References: []string{}, Confidence: 0.5}, nil
	}
	if answer.References == nil {
		answer.References = []string{}
	}
	answer.Confidence = min(max(answer.Confidence, 0), 1)
	return &answer, nil
}

func (a *AIClient) complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:          a.config.Model,
		Messages:       messages,
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(a.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAIResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, snippet)
	}

	var result completionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("AI API returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

func describeContract(c *model.Contract) string {
	var b strings.Builder
	fmt.Fprintf(&b, "タイトル: %s\n種別: %s\n", c.Title, c.Type)
	if c.Description != "" {
		fmt.Fprintf(&b, "概要: %s\n", c.Description)
	}
	for _, p := range c.Parties {
		fmt.Fprintf(&b, "当事者(%s): %s %s\n", p.Type, p.Company, p.Name)
	}
	b.WriteString("本文:\n")
	b.WriteString(c.Content)
	return b.String()
}

// extractJSON strips markdown fences some models wrap around JSON.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}

func normalizeSeverity(s model.Severity) model.Severity {
	switch model.Severity(strings.ToLower(string(s))) {
	case model.SeverityLow:
		return model.SeverityLow
	case model.SeverityHigh:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}
