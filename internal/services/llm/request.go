package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta chatCompletionMessage `json:"delta"`
		// Legacy completion-style responses.
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// apiError is an error object reported inside a 2xx response body.
type apiError struct {
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("llm request: api error: %s", e.Message)
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("llm request: empty content (finish_reason=%q, refusal=%q)", e.FinishReason, e.Refusal)
}

func (c *Client) attempt(ctx context.Context, payload chatCompletionRequest, correlationID string) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", correlationID)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", &apiError{Message: strings.TrimSpace(completion.Error.Message)}
	}
	content, finishReason, refusal := extractCompletion(completion)
	if strings.TrimSpace(content) == "" {
		return "", &emptyContentError{FinishReason: finishReason, Refusal: refusal}
	}
	return content, nil
}

// extractCompletion returns the first non-blank choice content untouched.
func extractCompletion(completion chatCompletionResponse) (content, finishReason, refusal string) {
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
			if refusal == "" {
				refusal = strings.TrimSpace(choice.Delta.Refusal)
			}
		}
		for _, candidate := range []string{choice.Message.Content, choice.Delta.Content, choice.Text} {
			if strings.TrimSpace(candidate) != "" {
				return candidate, finishReason, refusal
			}
		}
	}
	return "", finishReason, refusal
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
