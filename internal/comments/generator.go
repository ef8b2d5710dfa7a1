package comments

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
)

// FallbackComment is used whenever the completion API is unreachable,
// errors, or returns nothing usable. Generation failures never abort a
// comment action.
const FallbackComment = "Interesting perspective! Thanks for sharing."

// Generator produces a short reply to a tweet in the voice of a profile's
// persona, via an OpenAI-compatible chat-completion endpoint.
type Generator struct {
	apiKey  string
	apiBase string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

func NewGenerator(apiKey, apiBase, model string, logger *slog.Logger) *Generator {
	return &Generator{
		apiKey:  apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.With("component", "comments"),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate returns a comment for tweetText. It always returns usable text;
// on any failure the fixed fallback is substituted and the cause logged.
func (g *Generator) Generate(ctx context.Context, tweetText, persona string) string {
	comment, err := g.complete(ctx, tweetText, persona)
	if err != nil {
		g.logger.Warn("comment generation failed, using fallback", "error", err)
		return FallbackComment
	}
	return comment
}

func (g *Generator) complete(ctx context.Context, tweetText, persona string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: g.model,
		Messages: []message{
			{Role: "system", Content: persona},
			{Role: "user", Content: fmt.Sprintf(
				"Write a short, natural reply to this tweet. Stay under 200 characters, no hashtags.\n\nTweet: %s",
				tweetText,
			)},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion API status %d: %s", resp.StatusCode, snippet)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	comment := strings.TrimSpace(out.Choices[0].Message.Content)
	if comment == "" {
		return "", fmt.Errorf("completion returned empty content")
	}
	return comment, nil
}
