// Package inference adapts google.golang.org/genai (Gemini) to
// corectl.InferenceEngine, asking the model for one navigator decision per
// call and enforcing its shape with a JSON response schema.
package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"agentcore/internal/corectl"

	"google.golang.org/genai"
)

// Config controls model selection and request shaping.
type Config struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int32
}

// DefaultConfig returns sensible defaults for the navigator model.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		Model:           "gemini-2.5-flash",
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
	}
}

// Client implements corectl.InferenceEngine against the Gemini API.
type Client struct {
	cfg    Config
	genai  *genai.Client
	logger corectl.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// New constructs a Client bound to one Gemini API key and model.
func New(ctx context.Context, cfg Config, logger corectl.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("inference: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}
	if logger == nil {
		logger = noopLogger{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("inference: create genai client: %w", err)
	}
	return &Client{cfg: cfg, genai: client, logger: logger}, nil
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// decisionJSON mirrors corectl.NavigatorActionDecision for schema-bound decoding.
type decisionJSON struct {
	Action     string   `json:"action"`
	Target     *pointJS `json:"target,omitempty"`
	Text       *string  `json:"text,omitempty"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

type pointJS struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var decisionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action": {
			Type: genai.TypeString,
			Enum: []string{"CLICK", "TYPE", "SCROLL", "WAIT", "EXTRACT", "PRESS_KEY", "DONE", "FAILED"},
		},
		"target": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"x": {Type: genai.TypeNumber},
				"y": {Type: genai.TypeNumber},
			},
		},
		"text":       {Type: genai.TypeString},
		"confidence": {Type: genai.TypeNumber},
		"reasoning":  {Type: genai.TypeString},
	},
	Required: []string{"action", "confidence", "reasoning"},
}

// DecideNextAction asks Gemini for the next navigator action given one observation.
func (c *Client) DecideNextAction(ctx context.Context, intent string, tier corectl.Tier, reason corectl.EscalationReason, obs corectl.Observation) (*corectl.NavigatorActionDecision, error) {
	parts := []*genai.Part{genai.NewPartFromText(buildNavigatorPrompt(intent, tier, reason, obs))}
	if tier == corectl.TierTwoVision && obs.VisualSnapshot != nil {
		if data, err := base64.StdEncoding.DecodeString(obs.VisualSnapshot.Base64); err == nil {
			mimeType := obs.VisualSnapshot.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			parts = append(parts, genai.NewPartFromBytes(data, mimeType))
		} else {
			c.logger.Warnf("inference: discarding undecodable tier-2 screenshot: %v", err)
		}
	}

	raw, err := c.generateJSON(ctx, parts, decisionSchema, navigatorSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("decide next action: %w", err)
	}

	decision, err := decodeDecision(raw)
	if err != nil {
		return nil, fmt.Errorf("decide next action: %w", err)
	}
	return decision, nil
}

// decodeDecision parses one schema-validated model response into corectl's
// decision vocabulary.
func decodeDecision(raw []byte) (*corectl.NavigatorActionDecision, error) {
	var decoded decisionJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	decision := corectl.NavigatorActionDecision{
		Action:     corectl.ActionKind(decoded.Action),
		Text:       decoded.Text,
		Confidence: decoded.Confidence,
		Reasoning:  decoded.Reasoning,
	}
	if decoded.Target != nil {
		decision.Target = &corectl.Point{X: decoded.Target.X, Y: decoded.Target.Y}
	}
	return &decision, nil
}

// EstimateNavigatorPromptBudget reports the prompt size DecideNextAction would
// send, without dispatching a decision request.
func (c *Client) EstimateNavigatorPromptBudget(ctx context.Context, intent string, obs corectl.Observation, tier corectl.Tier, reason corectl.EscalationReason) (corectl.PromptBudgetEstimate, error) {
	prompt := buildNavigatorPrompt(intent, tier, reason, obs)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	tokenCount, err := c.genai.Models.CountTokens(ctx, c.cfg.Model, contents, nil)
	estimatedTokens := len(prompt) / 4
	if err != nil {
		c.logger.Warnf("inference: count tokens failed, falling back to char heuristic: %v", err)
	} else if tokenCount != nil {
		estimatedTokens = int(tokenCount.TotalTokens)
	}

	return corectl.PromptBudgetEstimate{
		PromptCharCount:       len(prompt),
		EstimatedPromptTokens: estimatedTokens,
		AlertThreshold:        corectl.PromptTokenAlertThreshold,
	}, nil
}

const maxRetries = 3

// generateJSON sends parts to the model with the given schema enforced on the
// response, retrying transient failures with exponential backoff.
func (c *Client) generateJSON(ctx context.Context, parts []*genai.Part, schema *genai.Schema, systemPrompt string) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		MaxOutputTokens:   c.cfg.MaxOutputTokens,
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
		if err != nil {
			lastErr = err
			c.logger.Warnf("inference: generate content attempt %d failed: %v", attempt+1, err)
			continue
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			lastErr = fmt.Errorf("empty response")
			continue
		}
		return []byte(text), nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Close releases the underlying genai client, if applicable.
func (c *Client) Close() error {
	return nil
}
