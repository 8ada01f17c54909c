// Package kafkaproducer publishes point update events to Kafka.
package kafkaproducer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/quadkey-index/internal/core/observability"
	"github.com/mohammed-shakir/quadkey-index/internal/ingest"
)

// Sender is the part of sarama.SyncProducer the publisher uses.
type Sender interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
}

type Publisher struct {
	sender Sender
	topic  string
}

// Dial connects a synchronous producer that waits for all in-sync replicas.
func Dial(brokers []string, topic string) (*Publisher, sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, nil, errors.New("kafkaproducer: no brokers")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("producer create: %w", err)
	}
	return New(prod, topic), prod, nil
}

func New(s Sender, topic string) *Publisher {
	return &Publisher{sender: s, topic: topic}
}

// Publish sends ev keyed by layer and id, so every update of one point lands on the
// same partition and is consumed in order.
func (p *Publisher) Publish(ev ingest.Event) (partition int32, offset int64, err error) {
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("invalid event: %w", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("encode event: %w", err)
	}
	partition, offset, err = p.sender.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(MessageKey(ev.Layer, ev.ID)),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		obs.IncKafkaConsumerError("produce")
		return 0, 0, fmt.Errorf("send message: %w", err)
	}
	return partition, offset, nil
}

func MessageKey(layer, id string) string { return layer + "/" + id }
