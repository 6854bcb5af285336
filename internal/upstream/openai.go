package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openaiBaseURL      = "https://api.openai.com/v1"
	openaiEnhanceModel = "gpt-4o"
	openaiProbeModel   = "gpt-4o-mini"

	// enhanceInstruction steers the chat model toward prompt rewriting.
	enhanceInstruction = "You are an expert at writing prompts for AI image generation. Enhance the given prompt to create beautiful, professional holiday greeting cards. Keep the core content but make it more detailed and visually descriptive. Respond with only the enhanced prompt, nothing else."
)

// Enhancer rewrites raw card prompts into richer image prompts using the
// OpenAI chat completions API.
type Enhancer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewEnhancer creates an Enhancer. The base URL and model can be
// overridden for tests via the option setters.
func NewEnhancer(apiKey string) *Enhancer {
	return &Enhancer{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    openaiBaseURL,
		model:      openaiEnhanceModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the enhancer at a different API endpoint.
func (e *Enhancer) WithBaseURL(baseURL string) *Enhancer {
	e.baseURL = strings.TrimRight(baseURL, "/")
	return e
}

// Configured reports whether an API key is present.
func (e *Enhancer) Configured() bool { return e.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Enhance rewrites prompt via the chat model. When the model returns an
// empty completion the original prompt is returned unchanged.
func (e *Enhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	if !e.Configured() {
		return "", &Error{Kind: KindBadAuth, Provider: "openai", Message: "API key not configured"}
	}
	body := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: enhanceInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   500,
		Temperature: 0.7,
	}
	parsed, err := e.post(ctx, body)
	if err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return prompt, nil
	}
	enhanced := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if enhanced == "" {
		return prompt, nil
	}
	return enhanced, nil
}

// Check issues a minimal completion to verify the API key works.
func (e *Enhancer) Check(ctx context.Context) error {
	if !e.Configured() {
		return &Error{Kind: KindBadAuth, Provider: "openai", Message: "API key not configured"}
	}
	body := chatRequest{
		Model:     openaiProbeModel,
		Messages:  []chatMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: 5,
	}
	_, err := e.post(ctx, body)
	return err
}

func (e *Enhancer) post(ctx context.Context, body chatRequest) (*chatResponse, error) {
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", errMarshal)
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payload))
	if errReq != nil {
		return nil, fmt.Errorf("openai: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, errDo := e.httpClient.Do(req)
	if errDo != nil {
		return nil, &Error{Kind: KindTransient, Provider: "openai", Message: errDo.Error()}
	}
	defer resp.Body.Close()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return nil, &Error{Kind: KindTransient, Provider: "openai", Message: errRead.Error()}
	}

	var parsed chatResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(raw))
		if parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		return nil, &Error{Kind: classifyStatus(resp.StatusCode), Provider: "openai", Status: resp.StatusCode, Message: message}
	}
	return &parsed, nil
}
