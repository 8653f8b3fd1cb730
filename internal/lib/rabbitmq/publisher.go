// Package rabbitmq содержит публикацию сообщений в брокер уведомлений.
package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/aceswin/mql4traderai/internal/models"
	brokersetup "github.com/aceswin/mql4traderai/internal/rabbitmq"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NotificationPublisher публикует уведомления об оплате в exchange уведомлений.
type NotificationPublisher struct {
	ch *amqp.Channel
}

// NewNotificationPublisher создает новый экземпляр NotificationPublisher.
func NewNotificationPublisher(ch *amqp.Channel) *NotificationPublisher {
	return &NotificationPublisher{ch: ch}
}

// PaymentConfirmed публикует уведомление об активации оплаченного доступа.
func (p *NotificationPublisher) PaymentConfirmed(notification models.PaymentConfirmedNotification) error {
	return PublishMessage(p.ch, brokersetup.NotificationsExchange, brokersetup.PaymentConfirmedRoutingKey, notification)
}
