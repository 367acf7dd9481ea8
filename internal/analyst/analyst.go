package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"brawlmeta/internal/config"
	"brawlmeta/internal/constants"
	"brawlmeta/internal/domain"

	"github.com/valyala/fasthttp"
)

const (
	chatCompletionsURL = "https://openrouter.ai/api/v1/chat/completions"
	model              = "moonshotai/kimi-k2.5"
)

// ErrDisabled is returned when no narrative API key is configured.
var ErrDisabled = fmt.Errorf("narrative analyst disabled: no api key")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyst turns aggregated battle data into markdown narratives through an
// OpenRouter-compatible chat endpoint.
type Analyst struct {
	apiKey string
	client *fasthttp.Client
}

func New(cfg *config.Config) *Analyst {
	return &Analyst{
		apiKey: cfg.InsightAPIKey,
		client: &fasthttp.Client{
			ReadTimeout:  constants.NarrativeTimeout,
			WriteTimeout: constants.NarrativeTimeout,
		},
	}
}

// Enabled reports whether a narrative key is configured.
func (a *Analyst) Enabled() bool {
	return a.apiKey != ""
}

// AnalyzeGlobalMeta produces a markdown report for a cross-bracket aggregate.
func (a *Analyst) AnalyzeGlobalMeta(ctx context.Context, payload domain.AggregatePayload) (string, error) {
	top := payload.TopBrawlers
	if len(top) > 15 {
		top = top[:15]
	}

	var sb strings.Builder
	sb.WriteString("Analyze this global Brawl Stars meta built from real battle data across all trophy brackets.\n\n")
	sb.WriteString("Top brawlers:\n")
	for i, b := range top {
		fmt.Fprintf(&sb, "%d. %s: %.1f%% win rate, %.1f%% pick rate, ~%d games\n",
			i+1, b.Name, b.WinRate, b.PickRate, b.Games)
	}
	if len(payload.ModeBreakdown) > 0 {
		sb.WriteString("\nMode breakdown:\n")
		for mode, leaders := range payload.ModeBreakdown {
			names := make([]string, 0, len(leaders))
			for _, l := range leaders {
				names = append(names, fmt.Sprintf("%s (%.1f%%)", l.Name, l.WinRate))
			}
			fmt.Fprintf(&sb, "- %s: %s\n", mode, strings.Join(names, ", "))
		}
	}
	sb.WriteString("\nTasks:\n")
	sb.WriteString("1. Identify the 5 brawlers dominating the current meta.\n")
	sb.WriteString("2. Analyze per-mode tendencies.\n")
	sb.WriteString("3. Recommend an S/A/B tier list.\n")
	sb.WriteString("4. Suggest counters to the top picks.\n\n")
	sb.WriteString("Respond in structured markdown, analyst-report style. Be concise but precise.")

	return a.complete(ctx,
		"You are an expert Brawl Stars meta analyst. You provide insights grounded in data from thousands of real games.",
		sb.String())
}

func (a *Analyst) complete(ctx context.Context, system, user string) (string, error) {
	if a.apiKey == "" {
		return "", ErrDisabled
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(chatCompletionsURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.SetBody(body)

	deadline := time.Now().Add(constants.NarrativeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := a.client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("chat request failed with status %d", resp.StatusCode())
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
