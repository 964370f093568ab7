package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fortuna/internal/config"
)

const userAgent = "Fortuna/0.1.0"

// Event identifies a notification category.
type Event string

const (
	// EventRunStarted fires once when the first work of a run enters processing.
	EventRunStarted Event = "run_started"
	// EventRunCompleted fires when every work of a run has reached a terminal
	// status.
	EventRunCompleted Event = "run_completed"
	// EventError fires when a stage fails a work.
	EventError Event = "error"
	// EventTest exercises the notification path on demand.
	EventTest Event = "test"
)

// Payload carries event-specific values keyed by well-known names: "count",
// "processed", "failed", "duration", "error", "context".
type Payload map[string]any

// Service publishes workflow events to the operator.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		runComplete: cfg.Notifications.RunComplete,
		errors:      cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	runComplete bool
	errors      bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		if !n.runComplete {
			return message{}, false
		}
		return message{
			title: "Fortuna - Run Started",
			body:  fmt.Sprintf("Scoring %d works", intValue(payload, "count")),
			tags:  []string{"fortuna", "run", "started"},
		}, true
	case EventRunCompleted:
		if !n.runComplete {
			return message{}, false
		}
		processed := intValue(payload, "processed")
		failed := intValue(payload, "failed")
		elapsed := durationText(payload, "duration")
		if failed == 0 {
			return message{
				title: "Fortuna - Run Complete",
				body:  fmt.Sprintf("Run complete: %d works ranked in %s", processed, elapsed),
				tags:  []string{"fortuna", "run", "completed"},
			}, true
		}
		return message{
			title:    "Fortuna - Run Complete (with errors)",
			body:     fmt.Sprintf("Run complete: %d ranked, %d failed in %s", processed, failed, elapsed),
			tags:     []string{"fortuna", "run", "completed"},
			priority: "high",
		}, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("Error")
		if label := strings.TrimSpace(stringValue(payload, "context")); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := errorText(payload, "error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Fortuna - Error",
			body:     builder.String(),
			tags:     []string{"fortuna", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Fortuna - Test",
			body:     "Notification system test",
			tags:     []string{"fortuna", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringValue(payload Payload, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func errorText(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case error:
		return strings.TrimSpace(v.Error())
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}

func durationText(payload Payload, key string) string {
	d, _ := payload[key].(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
