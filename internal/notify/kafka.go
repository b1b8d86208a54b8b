package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const kafkaSendTimeout = 5 * time.Second

// KafkaSink publishes notifications to a Kafka topic, keyed by severity so
// consumers can partition-filter critical alerts.
type KafkaSink struct {
	writer *kafka.Writer
	log    *logrus.Entry
}

func NewKafkaSink(brokers []string, topic string, log *logrus.Logger) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		log: log.WithField("component", "notify-kafka"),
	}
}

type kafkaNotification struct {
	Severity Severity `json:"severity"`
	Header   string   `json:"header"`
	Content  string   `json:"content"`
	At       int64    `json:"at"`
}

func (s *KafkaSink) Notify(ctx context.Context, severity Severity, header, content string) {
	payload, err := json.Marshal(kafkaNotification{
		Severity: severity,
		Header:   header,
		Content:  content,
		At:       time.Now().UnixMilli(),
	})
	if err != nil {
		s.log.WithError(err).Error("encode notification")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, kafkaSendTimeout)
	defer cancel()
	if err := s.writer.WriteMessages(sendCtx, kafka.Message{
		Key:   []byte(severity),
		Value: payload,
	}); err != nil {
		s.log.WithError(err).WithField("header", header).Error("publish notification")
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
