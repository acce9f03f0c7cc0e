package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chanwatch/internal/models"
)

// Oracle talks to an OpenAI-compatible chat-completions endpoint (a local
// LM Studio instance by default). One request classifies one batch of texts
// on one dimension; the reply is parsed line by line.
type Oracle struct {
	apiURL string
	client *http.Client
}

// NewOracle creates an oracle client for the given chat-completions URL.
func NewOracle(apiURL string, timeout time.Duration) *Oracle {
	return &Oracle{
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Ping checks that the service behind the completions URL is reachable.
// An unreachable oracle aborts an analysis run before any batch is sent.
func (o *Oracle) Ping(ctx context.Context) error {
	url := strings.Replace(o.apiURL, "/chat/completions", "/models", 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("classification oracle is unreachable at %s: %w", o.apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("classification oracle is unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

var prompts = map[models.Dimension]string{
	models.DimensionToxicity: "Classify the tone of each numbered comment as toxic, friendly or neutral.\n" +
		"Answer with one line per comment, exactly in the form <number>:<category>, nothing else.",
	models.DimensionStance: "Classify the political stance of each numbered comment as pro_ukraine, pro_russia or neutral.\n" +
		"Answer with one line per comment, exactly in the form <number>:<category>, nothing else.",
}

// Classify submits one batch of texts for one dimension and returns the
// parsed categories keyed by 1-based batch index. Callers compare the map
// size against the batch size to detect a malformed reply.
func (o *Oracle) Classify(ctx context.Context, dim models.Dimension, texts []string) (map[int]string, error) {
	var prompt strings.Builder
	prompt.WriteString(prompts[dim])
	prompt.WriteString("\n\n")
	for i, text := range texts {
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, text)
	}

	body, err := json.Marshal(map[string]any{
		"model":       "local-model",
		"temperature": 0.1,
		"max_tokens":  10 * len(texts),
		"messages": []map[string]string{
			{"role": "user", "content": prompt.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, snippet)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("oracle returned no choices")
	}

	return parseReply(dim, completion.Choices[0].Message.Content, len(texts)), nil
}

// parseReply extracts <index>:<token> lines. Indexes outside the batch and
// unparseable lines are dropped; the caller decides whether the remainder
// is enough.
func parseReply(dim models.Dimension, content string, batchSize int) map[int]string {
	out := map[int]string{}
	for _, line := range strings.Split(content, "\n") {
		idx, token, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(idx, ".")))
		if err != nil || n < 1 || n > batchSize {
			continue
		}
		out[n] = categoryFromToken(dim, token)
	}
	return out
}

// categoryFromToken maps a model's answer onto the fixed category
// vocabulary by substring, tolerating verbose output.
func categoryFromToken(dim models.Dimension, token string) string {
	t := strings.ToLower(token)
	switch dim {
	case models.DimensionToxicity:
		switch {
		case strings.Contains(t, "toxic"):
			return models.CategoryToxic
		case strings.Contains(t, "friendly"):
			return models.CategoryFriendly
		}
	case models.DimensionStance:
		switch {
		case strings.Contains(t, "ukr"):
			return models.CategoryStanceA
		case strings.Contains(t, "rus"):
			return models.CategoryStanceB
		}
	}
	return models.CategoryNeutral
}
