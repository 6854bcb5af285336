package upstream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	geminiImageModel = "gemini-2.5-flash-image-preview"
)

// ImageRequest describes one image generation call. When ImageData is
// set the call runs image-to-image with the reference photo inlined.
type ImageRequest struct {
	Prompt    string
	ImageData []byte
	MimeType  string
}

// ImageResult is a generated image.
type ImageResult struct {
	Data     []byte
	MimeType string
}

// ImageClient generates card images through the Gemini generateContent
// API.
type ImageClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewImageClient creates an ImageClient.
func NewImageClient(apiKey string) *ImageClient {
	return &ImageClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    geminiBaseURL,
		model:      geminiImageModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithBaseURL points the client at a different API endpoint.
func (c *ImageClient) WithBaseURL(baseURL string) *ImageClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Configured reports whether an API key is present.
func (c *ImageClient) Configured() bool { return c.apiKey != "" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate runs one generation call and returns the first inline image
// from the response. A completed response without an image is reported
// as KindNoImage so callers fail fast instead of retrying.
func (c *ImageClient) Generate(ctx context.Context, req ImageRequest) (ImageResult, error) {
	if !c.Configured() {
		return ImageResult{}, &Error{Kind: KindBadAuth, Provider: "gemini", Message: "API key not configured"}
	}

	parts := []geminiPart{{Text: req.Prompt}}
	if len(req.ImageData) > 0 {
		mimeType := req.MimeType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(req.ImageData),
		}})
	}

	payload, errMarshal := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: parts}}})
	if errMarshal != nil {
		return ImageResult{}, fmt.Errorf("gemini: marshal request: %w", errMarshal)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if errReq != nil {
		return ImageResult{}, fmt.Errorf("gemini: build request: %w", errReq)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return ImageResult{}, &Error{Kind: KindTransient, Provider: "gemini", Message: errDo.Error()}
	}
	defer resp.Body.Close()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if errRead != nil {
		return ImageResult{}, &Error{Kind: KindTransient, Provider: "gemini", Message: errRead.Error()}
	}

	var parsed geminiResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		return ImageResult{}, c.classifyFailure(resp.StatusCode, raw, &parsed)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return ImageResult{}, &Error{Kind: KindContentPolicy, Provider: "gemini", Message: "blocked: " + parsed.PromptFeedback.BlockReason}
	}

	for _, candidate := range parsed.Candidates {
		if reason := candidate.FinishReason; reason == "SAFETY" || reason == "IMAGE_SAFETY" || reason == "PROHIBITED_CONTENT" {
			return ImageResult{}, &Error{Kind: KindContentPolicy, Provider: "gemini", Message: "blocked: " + reason}
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, errDecode := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if errDecode != nil {
				return ImageResult{}, fmt.Errorf("gemini: decode image: %w", errDecode)
			}
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return ImageResult{Data: data, MimeType: mimeType}, nil
		}
	}
	return ImageResult{}, &Error{Kind: KindNoImage, Provider: "gemini", Message: "no image data in response"}
}

// classifyFailure maps an HTTP-level failure onto the error taxonomy,
// peeking at the structured error body for auth and safety markers that
// arrive under generic status codes.
func (c *ImageClient) classifyFailure(status int, raw []byte, parsed *geminiResponse) *Error {
	message := strings.TrimSpace(string(raw))
	apiStatus := ""
	if parsed.Error != nil {
		if parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		apiStatus = parsed.Error.Status
	}

	kind := classifyStatus(status)
	switch {
	case strings.Contains(message, "API_KEY_INVALID") || apiStatus == "UNAUTHENTICATED" || apiStatus == "PERMISSION_DENIED":
		kind = KindBadAuth
	case apiStatus == "RESOURCE_EXHAUSTED":
		kind = KindRateLimited
	case strings.Contains(strings.ToLower(message), "safety"):
		kind = KindContentPolicy
	}
	return &Error{Kind: kind, Provider: "gemini", Status: status, Message: message}
}
