package nats

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/qrave1/StudyRoom/internal/application/constant"
)

func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("studyroom"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("nats disconnected", slog.Any(constant.Error, err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			attrs := []any{slog.Any(constant.Error, err)}
			if sub != nil {
				attrs = append(attrs, slog.String(constant.Subject, sub.Subject))
			}

			slog.Error("nats async error", attrs...)
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	slog.Info("connected to nats", slog.String("url", nc.ConnectedUrl()))

	return nc, nil
}
