package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/models"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventPaymentFailed    = "payment.failed"
)

type bookingEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	TransactionRef string    `json:"transaction_ref"`
	BookingID      string    `json:"booking_id,omitempty"`
	OrderID        string    `json:"order_id,omitempty"`
	Code           string    `json:"code,omitempty"`
	Total          int64     `json:"total,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Producer streams booking lifecycle events to Kafka. In mock mode it only
// logs, which keeps local development free of a broker.
type Producer struct {
	writer   *kafka.Writer
	mockMode bool
	log      *logger.Logger
}

func NewProducer(brokers []string, topic string, mockMode bool, log *logger.Logger) *Producer {
	p := &Producer{mockMode: mockMode, log: log}
	if !mockMode {
		p.writer = kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return p
}

func (p *Producer) PublishBookingConfirmed(detail *models.BookingDetail) error {
	return p.publish(bookingEvent{
		Type:           EventBookingConfirmed,
		TransactionRef: detail.TransactionRef,
		BookingID:      detail.Booking.BookingID,
		OrderID:        detail.Booking.OrderID,
		Total:          detail.Booking.Total,
		Timestamp:      time.Now(),
	})
}

func (p *Producer) PublishPaymentFailed(transactionRef, code string) error {
	return p.publish(bookingEvent{
		Type:           EventPaymentFailed,
		TransactionRef: transactionRef,
		Code:           code,
		Timestamp:      time.Now(),
	})
}

func (p *Producer) publish(event bookingEvent) error {
	event.EventID = uuid.NewString()
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	if p.mockMode || p.writer == nil {
		if p.log != nil {
			p.log.Info("KAFKA", fmt.Sprintf("[mock] %s: %s", event.Type, string(value)))
		}
		return nil
	}

	err = p.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(event.TransactionRef),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	if p.log != nil {
		p.log.Info("KAFKA", fmt.Sprintf("published %s for %s", event.Type, event.TransactionRef))
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
