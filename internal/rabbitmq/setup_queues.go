package rabbitmq

const (
	// NotificationsExchange — exchange почтовых уведомлений.
	NotificationsExchange = "notifications"
	// PaymentConfirmedQueue — очередь писем об активации оплаченного доступа.
	PaymentConfirmedQueue = "notifications.payment-confirmed"
	// PaymentConfirmedRoutingKey — ключ маршрутизации событий оплаты.
	PaymentConfirmedRoutingKey = "payment.confirmed"
)

// QueueConfig описывает очередь и ее ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди сервиса уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: PaymentConfirmedQueue, RoutingKey: PaymentConfirmedRoutingKey},
	}
}
