// Package sender собирает сервис отправки почтовых уведомлений:
// подключение к брокеру и запуск консьюмера очереди оплат.
package sender

import (
	"context"
	"log/slog"

	"github.com/aceswin/mql4traderai/internal/config"
	"github.com/aceswin/mql4traderai/internal/lib/smtp"
	"github.com/aceswin/mql4traderai/internal/rabbitmq"
	senderservice "github.com/aceswin/mql4traderai/internal/services/sender"
	"github.com/streadway/amqp"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		return nil, err
	}

	newTransport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.NewSenderService(logger, newTransport)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.PaymentConfirmedQueue, a.senderService.SendPaymentConfirmed)
	if err != nil {
		a.logger.Error("failed to start payment confirmed consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
