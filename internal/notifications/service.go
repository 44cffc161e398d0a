package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bobbin/internal/config"
)

const (
	userAgent      = "bobbin/0.1.0"
	defaultTimeout = 10 * time.Second
	errorBodyLimit = 2048
)

// Event names a notification-worthy workflow milestone.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventJobCompleted Event = "job_completed"
	EventRunCompleted Event = "run_completed"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event specific values keyed by name.
type Payload map[string]any

// Service is what the workflow publishes milestones to.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService posts to the configured ntfy topic URL. Without a topic every
// Publish is a no-op.
func NewService(cfg *config.Config) Service {
	n := cfg.Notifications
	topic := strings.TrimSpace(n.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		topic:  topic,
		client: &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventRunStarted:   n.RunStart,
			EventJobCompleted: n.RunComplete,
			EventRunCompleted: n.RunComplete,
			EventError:        n.Errors,
			EventTest:         true,
		},
	}
}

// message is one ntfy post: the body plus its header fields.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

var formatters = map[Event]func(Payload) message{
	EventRunStarted: func(p Payload) message {
		return message{
			title: "bobbin - Run Started",
			body:  fmt.Sprintf("Started transcribing %d queued jobs", p.count("count")),
			tags:  []string{"bobbin", "run", "started"},
		}
	},
	EventJobCompleted: func(p Payload) message {
		body := "Transcribed: " + p.text("title")
		if out := p.text("output"); out != "" {
			body += "\nFile: " + out
		}
		return message{title: "bobbin - Transcript Ready", body: body, tags: []string{"bobbin", "job", "completed"}}
	},
	EventRunCompleted: func(p Payload) message {
		done, failed, took := p.count("processed"), p.count("failed"), p.elapsed("duration")
		if failed > 0 {
			return message{
				title: "bobbin - Run Failed",
				body:  fmt.Sprintf("Run stopped: %d transcribed, %d failed in %s", done, failed, took),
				tags:  []string{"bobbin", "run", "failed"},
			}
		}
		return message{
			title: "bobbin - Run Complete",
			body:  fmt.Sprintf("Run complete: %d jobs transcribed in %s", done, took),
			tags:  []string{"bobbin", "run", "completed"},
		}
	},
	EventError: func(p Payload) message {
		where := ""
		if label := p.text("context"); label != "" {
			where = " with " + label
		}
		detail := p.text("error")
		if detail == "" {
			detail = "unknown"
		}
		return message{
			title:    "bobbin - Error",
			body:     "Error" + where + ": " + detail,
			tags:     []string{"bobbin", "error", "alert"},
			priority: "high",
		}
	},
	EventTest: func(Payload) message {
		return message{title: "bobbin - Test", body: "Notification system test", tags: []string{"bobbin", "test"}, priority: "low"}
	},
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// elapsed renders whole seconds; missing or negative values read "0s".
func (p Payload) elapsed(key string) string {
	d, _ := p[key].(time.Duration)
	if d = d.Round(time.Second); d <= 0 {
		return "0s"
	}
	return d.String()
}

type ntfyService struct {
	topic   string
	client  *http.Client
	enabled map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	build, known := formatters[event]
	if n == nil || !known || !n.enabled[event] {
		return nil
	}
	return n.post(ctx, build(data))
}

func (n *ntfyService) post(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topic, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        msg.title,
		"Tags":         strings.Join(msg.tags, ","),
		"Priority":     msg.priority,
	}
	for name, value := range headers {
		if value != "" && value != "default" {
			req.Header.Set(name, value)
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
