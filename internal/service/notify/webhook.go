// Package notify delivers operator alerts.
package notify

import (
	"context"
	"time"

	domsvc "SuperAlgo/internal/domain/service"
	xhttp "SuperAlgo/pkg/http"
	applogger "SuperAlgo/pkg/logger"
)

// Webhook posts alerts as JSON to a chat webhook. The body carries both a
// plain "text" field and a Discord-style embed so it renders on either.
type Webhook struct {
	url    string
	client *xhttp.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: url, client: xhttp.NewClient(xhttp.WithTimeout(timeout))}
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type payload struct {
	Text   string  `json:"text"`
	Embeds []embed `json:"embeds"`
}

func (w *Webhook) Alert(ctx context.Context, title, message string) error {
	return w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    w.url,
		Body: payload{
			Text:   title + ": " + message,
			Embeds: []embed{{Title: title, Description: message, Timestamp: time.Now().UTC().Format(time.RFC3339)}},
		},
	}, nil)
}

// LogAlerter writes alerts to the log; used when no webhook is configured.
type LogAlerter struct {
	log *applogger.Logger
}

func NewLogAlerter(log *applogger.Logger) *LogAlerter { return &LogAlerter{log: log} }

func (l *LogAlerter) Alert(_ context.Context, title, message string) error {
	l.log.Error("ALERT "+title, applogger.String("message", message))
	return nil
}

var (
	_ domsvc.Alerter = (*Webhook)(nil)
	_ domsvc.Alerter = (*LogAlerter)(nil)
)
