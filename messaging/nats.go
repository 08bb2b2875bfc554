package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	natsMaxReconnects = -1 // без ограничения
	natsReconnectWait = 2 * time.Second
)

// Publisher публикует сохранённые документы таймеров в NATS
// в subject "<prefix>.<tournament>".
type Publisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

func NewPublisher(url, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if subjectPrefix == "" {
		return nil, errors.New("nats subject prefix is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{
		nats.Name("tournament-timer"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", slog.Any("error", err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Publisher{nc: nc, subjectPrefix: subjectPrefix, logger: logger}, nil
}

// Subject возвращает subject, в который публикуются обновления турнира.
func (p *Publisher) Subject(tournament string) string {
	return p.subjectPrefix + "." + tournament
}

// TimerUpdated реализует services.TimerNotifier.
func (p *Publisher) TimerUpdated(ctx context.Context, tournament string, document []byte) error {
	msg := nats.NewMsg(p.Subject(tournament))
	msg.Data = document
	msg.Header.Set("Content-Type", "application/json")

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish timer update to %s: %w", msg.Subject, err)
	}
	p.logger.DebugContext(ctx, "Timer update published", slog.String("subject", msg.Subject))
	return nil
}

// Close дожидается отправки буфера и закрывает соединение.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
