package delivery

import (
	"context"

	"petnotify/internal/model"
	logx "petnotify/pkg/logx"
)

// LogSink writes outbound messages to the log. It stands in for a push or
// email transport that is wired outside this service.
type LogSink struct {
	channel model.Channel
	log     logx.Logger
}

func NewLogSink(c model.Channel, log logx.Logger) *LogSink {
	return &LogSink{channel: c, log: log.With(logx.String("sink", string(c)))}
}

func (l *LogSink) Name() model.Channel { return l.channel }

func (l *LogSink) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := m.Notification
	l.log.Info("outbound notification",
		logx.String("id", n.ID),
		logx.Int64("user_id", int64(n.RecipientID)),
		logx.String("category", string(n.Category)),
		logx.String("title", n.Title),
	)
	return nil
}
