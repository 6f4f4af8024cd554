package notify

import (
	"context"
	"fmt"

	domsvc "SuperAlgo/internal/domain/service"
	applogger "SuperAlgo/pkg/logger"
	"SuperAlgo/pkg/queue"
)

const alertMessageType = "alert"

type alertMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// AlertJob delivers queued alerts through the wrapped alerter.
type AlertJob struct {
	target domsvc.Alerter
}

func NewAlertJob(target domsvc.Alerter) *AlertJob { return &AlertJob{target: target} }

func (j *AlertJob) Name() string { return "alert-delivery" }

func (j *AlertJob) Type() string { return alertMessageType }

func (j *AlertJob) Handle(ctx context.Context, payload interface{}) error {
	msg, err := queue.ParsePayload[alertMessage](payload)
	if err != nil {
		return err
	}
	if err := j.target.Alert(ctx, msg.Title, msg.Message); err != nil {
		return fmt.Errorf("deliver alert %q: %w", msg.Title, err)
	}
	return nil
}

// Queued enqueues alerts for asynchronous delivery. When the queue is
// unreachable the alert goes to fallback directly.
type Queued struct {
	pub      queue.Publisher
	fallback domsvc.Alerter
	log      *applogger.Logger
}

func NewQueued(pub queue.Publisher, fallback domsvc.Alerter, log *applogger.Logger) *Queued {
	if log == nil {
		log = applogger.Nop()
	}
	return &Queued{pub: pub, fallback: fallback, log: log}
}

func (q *Queued) Alert(ctx context.Context, title, message string) error {
	err := q.pub.PublishMessage(ctx, alertMessageType, alertMessage{Title: title, Message: message})
	if err == nil {
		return nil
	}
	q.log.Warn("alert enqueue failed; delivering directly", applogger.String("title", title), applogger.Error(err))
	return q.fallback.Alert(ctx, title, message)
}

var (
	_ domsvc.Alerter = (*Queued)(nil)
	_ queue.Job      = (*AlertJob)(nil)
)
