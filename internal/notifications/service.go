package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podharvest/internal/config"
)

const userAgent = "PodHarvest-Go/0.1.0"

// Service defines the notification surface exposed to the harvest pipeline.
type Service interface {
	NotifyHarvestStarted(ctx context.Context, channelCount int) error
	NotifyChannelCompleted(ctx context.Context, channel string, fetched, skipped, failed int) error
	NotifySummaryReady(ctx context.Context, channel, itemTitle string) error
	NotifyHarvestCompleted(ctx context.Context, fetched, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// Without a topic, a noop implementation is returned.
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled:  cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  config.Notifications
}

func (n *ntfyService) NotifyHarvestStarted(ctx context.Context, channelCount int) error {
	if !n.enabled.HarvestStart {
		return nil
	}
	data := payload{
		title:   "PodHarvest - Run Started",
		message: fmt.Sprintf("Harvesting %d channels", channelCount),
		tags:    []string{"podharvest", "harvest", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyChannelCompleted(ctx context.Context, channel string, fetched, skipped, failed int) error {
	if !n.enabled.ChannelDone {
		return nil
	}
	channel = strings.TrimSpace(channel)
	title := "PodHarvest - Channel Complete"
	message := fmt.Sprintf("%s: %d fetched, %d skipped", channel, fetched, skipped)
	if failed > 0 {
		title = "PodHarvest - Channel Complete (with errors)"
		message = fmt.Sprintf("%s, %d failed", message, failed)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"podharvest", "channel", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySummaryReady(ctx context.Context, channel, itemTitle string) error {
	if !n.enabled.Summaries {
		return nil
	}
	data := payload{
		title:   "PodHarvest - Summary Ready",
		message: fmt.Sprintf("New summary in %s: %s", strings.TrimSpace(channel), strings.TrimSpace(itemTitle)),
		tags:    []string{"podharvest", "summary", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyHarvestCompleted(ctx context.Context, fetched, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "PodHarvest - Run Complete"
		message = fmt.Sprintf("Harvest complete: %d items fetched in %s", fetched, durationText)
	} else {
		title = "PodHarvest - Run Complete (with errors)"
		message = fmt.Sprintf("Harvest complete: %d fetched, %d failed in %s", fetched, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"podharvest", "harvest", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.enabled.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "PodHarvest - Error",
		message:  builder.String(),
		tags:     []string{"podharvest", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "PodHarvest - Test",
		message:  "Notification system test",
		tags:     []string{"podharvest", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) NotifyHarvestStarted(context.Context, int) error { return nil }
func (noopService) NotifyChannelCompleted(context.Context, string, int, int, int) error {
	return nil
}
func (noopService) NotifySummaryReady(context.Context, string, string) error { return nil }
func (noopService) NotifyHarvestCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
