package kafka

import (
	"log/slog"
	"time"
)

type MessageWriter = messageWriter

func NewPublisherWithWriter(w MessageWriter, topic string, logger *slog.Logger) *Publisher {
	return newPublisher(w, topic, time.Second, logger)
}
