package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Default model for duplicate arbitration. Pair comparison is a simple
// classification task, so the cost-efficient tier is the default.
const DefaultModel = "claude-3-5-haiku-20241022"

// GetModel returns the arbitration model, checking STEWARD_MODEL first
func GetModel() string {
	if model := os.Getenv("STEWARD_MODEL"); model != "" {
		return model
	}
	return DefaultModel
}

// Arbiter implements Oracle against the Anthropic API
type Arbiter struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
}

// Compile-time check that Arbiter implements Oracle
var _ Oracle = (*Arbiter)(nil)

// Config holds arbiter configuration
type Config struct {
	APIKey string      // Anthropic API key (if empty, reads ANTHROPIC_API_KEY)
	Model  string      // Model to use (default: GetModel())
	Retry  RetryConfig // Retry configuration (defaults if zero)
}

// NewArbiter creates an LLM-backed duplicate arbiter
func NewArbiter(cfg *Config) (*Arbiter, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	a := &Arbiter{
		client: &client,
		model:  model,
		retry:  retry,
	}
	if retry.MaxConcurrentCalls > 0 {
		a.concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	if retry.CallsPerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(retry.CallsPerSecond), 1)
	}
	return a, nil
}

// CheckDuplicatePairs asks the model to arbitrate each pair in a single
// API call and returns one verdict per pair, in input order.
func (a *Arbiter) CheckDuplicatePairs(ctx context.Context, pairs []Pair) ([]Verdict, error) {
	if len(pairs) == 0 {
		return []Verdict{}, nil
	}

	prompt := buildPairsPrompt(pairs)

	// ~100 tokens per verdict plus overhead
	maxTokens := len(pairs)*150 + 200
	if maxTokens < 1000 {
		maxTokens = 1000
	}
	if maxTokens > 4000 {
		maxTokens = 4000
	}

	var responseText string
	err := a.retryWithBackoff(ctx, "duplicate_pairs", func(attemptCtx context.Context) error {
		resp, apiErr := a.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		responseText = ""
		for _, block := range resp.Content {
			if block.Type == "text" {
				responseText += block.Text
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}

	verdicts, err := parsePairsResponse(responseText, len(pairs))
	if err != nil {
		return nil, fmt.Errorf("failed to parse oracle response: %w (response: %s)",
			err, truncate(responseText, 200))
	}
	return verdicts, nil
}

// pairsResponse is the JSON shape the model is instructed to return
type pairsResponse struct {
	Results []Verdict `json:"results"`
}

// parsePairsResponse decodes the model output, tolerating markdown fences,
// and validates the verdict count and confidence ranges
func parsePairsResponse(text string, want int) ([]Verdict, error) {
	cleaned := stripFences(text)
	var resp pairsResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(resp.Results) != want {
		return nil, fmt.Errorf("got %d results, expected %d", len(resp.Results), want)
	}
	for i := range resp.Results {
		if err := resp.Results[i].Validate(); err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
	}
	return resp.Results, nil
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite instructions
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// buildPairsPrompt renders the arbitration prompt for a batch of pairs
func buildPairsPrompt(pairs []Pair) string {
	var b strings.Builder
	b.WriteString(`You are analyzing whether pairs of activities from a personal/organizational work tracker are duplicates.

PAIRS TO COMPARE:
`)
	for i, p := range pairs {
		fmt.Fprintf(&b, `
[%d] A: name=%q type=%s
    B: name=%q type=%s
`, i+1, p.A.Name, p.A.Type, p.B.Name, p.B.Type)
	}

	b.WriteString(`
TASK:
For EACH pair, determine whether A and B describe the SAME real-world activity.

IMPORTANT GUIDELINES:
1. Consider SEMANTIC SIMILARITY, not just string matching
2. Different wording is fine if both names mean the same undertaking
3. Abbreviations, typos, and reordered words usually indicate duplicates
4. Names that share a client or place but describe different work are NOT duplicates
5. Different types make duplicates unlikely but not impossible

EXAMPLES OF DUPLICATES:
- "Website redesign" vs "Redesign the website"
- "Acme kitchen reno" vs "Acme Corp kitchen renovation"

EXAMPLES OF NON-DUPLICATES:
- "Acme kitchen renovation" vs "Acme bathroom renovation"
- "Learn Spanish" vs "Learn Portuguese"

OUTPUT FORMAT (JSON only, no markdown):
{
  "results": [
    {"is_duplicate": boolean, "confidence": float (0.0-1.0), "reason": "brief explanation"}
  ]
}

CONFIDENCE SCORING:
- 0.95-1.0: Clearly the same activity
- 0.80-0.95: Very likely the same
- 0.50-0.80: Related but probably distinct
- 0.0-0.50: Different activities

IMPORTANT:
1. Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.
2. Include exactly one result per pair, in the order listed.
`)
	return b.String()
}
