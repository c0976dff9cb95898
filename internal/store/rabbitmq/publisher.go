package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/medirec/internal/models"
)

const EventPredictionCreated = "prediction.created"

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// PredictionMessage is what downstream consumers (analytics, notifications)
// receive for every saved prediction.
type PredictionMessage struct {
	Event            string   `json:"event"`
	PredictionID     string   `json:"prediction_id"`
	UserID           string   `json:"user_id"`
	PredictedDisease string   `json:"predicted_disease"`
	Symptoms         []string `json:"symptoms"`
	CreatedAt        string   `json:"created_at"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// declareTopology sets up <queue> and <queue>.dlq. Consumers that reject a
// message (nack, requeue=false) send it to the DLQ.
func declareTopology(ch *amqp.Channel, queue string) error {
	dlqQ := deadLetterQueue(queue)
	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(queue, true, false, false, false, mainQueueArgs(queue))
	return err
}

func deadLetterQueue(queue string) string { return queue + ".dlq" }

func mainQueueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": deadLetterQueue(queue),
	}
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func newPredictionMessage(pr *models.Prediction) PredictionMessage {
	return PredictionMessage{
		Event:            EventPredictionCreated,
		PredictionID:     pr.ID,
		UserID:           pr.UserID,
		PredictedDisease: pr.PredictedDisease,
		Symptoms:         pr.Symptoms,
		CreatedAt:        pr.CreatedAt,
	}
}

func (p *Publisher) PublishPrediction(ctx context.Context, pr *models.Prediction) error {
	body, err := json.Marshal(newPredictionMessage(pr))
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    pr.ID,
			Type:         EventPredictionCreated,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
