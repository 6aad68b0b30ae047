package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// Publisher sends domain events to RabbitMQ. A connection is dialled per
// publish: confirmations are rare compared to seat reads and this keeps the
// publisher free of reconnect state.
type Publisher struct {
    url string
    log logrus.FieldLogger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
    if log == nil {
        log = logrus.StandardLogger()
    }
    return &Publisher{url: url, log: log}
}

// PublishReservationConfirmed publishes ev to the reservation.confirmed
// queue as a persistent JSON message. Errors are logged and returned so the
// caller can choose to ignore them.
func (p *Publisher) PublishReservationConfirmed(ctx context.Context, ev ReservationConfirmedEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    conn, err := amqp.Dial(p.url)
    if err != nil {
        p.log.WithError(err).Warn("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.WithError(err).Warn("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    if err := declareReservationQueue(ch); err != nil {
        p.log.WithError(err).Warn("rabbitmq: queue declare failed")
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ReservationID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",                        // default exchange
        ReservationConfirmedQueue, // routing key = queue name
        false,                     // mandatory
        false,                     // immediate
        pub,
    ); err != nil {
        p.log.WithError(err).WithField("reservation_id", ev.ReservationID).Warn("rabbitmq: publish failed")
        return err
    }
    return nil
}

// declareReservationQueue makes sure the durable queue exists. Declaring is
// idempotent, so both the publisher and the consumer do it.
func declareReservationQueue(ch *amqp.Channel) error {
    _, err := ch.QueueDeclare(
        ReservationConfirmedQueue, // name
        true,                      // durable
        false,                     // autoDelete
        false,                     // exclusive
        false,                     // noWait
        nil,                       // args
    )
    return err
}
