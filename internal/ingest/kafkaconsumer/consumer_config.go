package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/quadkey-index/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

func FromIngest(in config.IngestCfg) Config {
	return Config{
		Brokers:             in.Brokers,
		Topic:               in.Topic,
		GroupID:             in.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: true,
		DedupeSize:          8192,
	}
}
