package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"fortuna/internal/sentiment"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
	maxOutputTokens       = 4096
)

// Config captures the runtime settings required to talk to the model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client judges sentence sentiment through an OpenAI-compatible chat
// completion endpoint with strict JSON schema output.
type Client struct {
	api   *openai.Client
	model string

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
	httpClient       *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a classifier client using the supplied configuration.
// The SDK's built-in retries are disabled so this client's backoff policy is
// the only one in play.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		model:            strings.TrimSpace(cfg.Model),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(baseURL))
	}
	if client.httpClient != nil {
		requestOpts = append(requestOpts, option.WithHTTPClient(client.httpClient))
	}

	api := openai.NewClient(requestOpts...)
	client.api = &api
	return client
}

const judgeInstructions = `You are a sentence sentiment classifier for narrative prose.

You will receive numbered sentences, one per line. For every sentence decide
whether its emotional polarity is POSITIVE or NEGATIVE and estimate your
confidence between 0 and 1. Assign neutral sentences the closest polarity with
low confidence.

Return a single JSON object matching the provided schema. The judgments array
must contain exactly one entry per input sentence, keyed by the sentence
numbers you were given. Do not include any additional text.`

type emptyContentError struct {
	FinishReason string
}

func (e *emptyContentError) Error() string {
	if e.FinishReason != "" {
		return fmt.Sprintf("llm completion: empty content (finish_reason=%s)", e.FinishReason)
	}
	return "llm completion: empty content"
}

// Classify submits a batch of sentences for judgment and returns one judgment
// per sentence, in input order.
func (c *Client) Classify(ctx context.Context, texts []string) ([]sentiment.Judgment, error) {
	if len(texts) == 0 {
		return []sentiment.Judgment{}, nil
	}
	if c.model == "" {
		return nil, errors.New("llm classify: model required")
	}

	content, err := c.completionWithRetry(ctx, buildJudgeInput(texts))
	if err != nil {
		return nil, err
	}

	var out judgeResponse
	if err := decodeModelJSON(content, &out); err != nil {
		return nil, fmt.Errorf("llm classify: %w", err)
	}
	return mapJudgments(out, len(texts))
}

// HealthCheck performs a tiny classification round trip to verify credentials
// and model access.
func (c *Client) HealthCheck(ctx context.Context) error {
	judgments, err := c.Classify(ctx, []string{"The morning light returned at last."})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if len(judgments) != 1 {
		return fmt.Errorf("llm health: expected one judgment, got %d", len(judgments))
	}
	return nil
}

// Close releases idle connections held by an injected HTTP client.
func (c *Client) Close() error {
	if c != nil && c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

func buildJudgeInput(texts []string) string {
	var b strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(text))
	}
	return b.String()
}

func mapJudgments(out judgeResponse, count int) ([]sentiment.Judgment, error) {
	if len(out.Judgments) != count {
		return nil, fmt.Errorf("llm classify: model returned %d judgments for %d sentences", len(out.Judgments), count)
	}
	judgments := make([]sentiment.Judgment, count)
	seen := make([]bool, count)
	for _, judged := range out.Judgments {
		idx := judged.Index - 1
		if idx < 0 || idx >= count {
			return nil, fmt.Errorf("llm classify: judgment for unknown sentence %d", judged.Index)
		}
		if seen[idx] {
			return nil, fmt.Errorf("llm classify: duplicate judgment for sentence %d", judged.Index)
		}
		label := sentiment.Label(strings.ToUpper(strings.TrimSpace(judged.Label)))
		switch label {
		case sentiment.LabelPositive, sentiment.LabelNegative:
		default:
			return nil, fmt.Errorf("llm classify: unknown label %q for sentence %d", judged.Label, judged.Index)
		}
		seen[idx] = true
		judgments[idx] = sentiment.Judgment{Label: label, Confidence: judged.Confidence}
	}
	return judgments, nil
}

func (c *Client) completionWithRetry(ctx context.Context, input string) (string, error) {
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.completionOnce(ctx, input)
		if err == nil {
			return content, nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", fmt.Errorf("llm completion: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) completionOnce(ctx context.Context, input string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(maxOutputTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(judgeInstructions),
			openai.UserMessage(input),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "SentenceJudgments",
					Description: openai.String("Sentiment judgments for numbered sentences"),
					Schema:      judgeSchema,
					Strict:      openai.Bool(true),
				},
				Type: "json_schema",
			},
		},
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", &emptyContentError{}
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", &emptyContentError{FinishReason: choice.FinishReason}
	}
	return content, nil
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var emptyErr *emptyContentError
	if errors.As(err, &emptyErr) {
		return c.backoffDelay(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}

	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		delay = c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	// Fast path: valid JSON as-is.
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	// Fallback: attempt to extract the first top-level JSON object, which also
	// strips markdown code fences.
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}

	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}
