// Package kafkaconsumer applies point update events from Kafka to the point index.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/quadkey-index/internal/core/model"
	obs "github.com/mohammed-shakir/quadkey-index/internal/core/observability"
	"github.com/mohammed-shakir/quadkey-index/internal/ingest"
	mylog "github.com/mohammed-shakir/quadkey-index/internal/logger"
	"github.com/mohammed-shakir/quadkey-index/internal/pointindex"
)

type PointIndex interface {
	Put(ctx context.Context, p model.Point) (string, error)
	Remove(ctx context.Context, layer, id string) error
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	zlog   *zerolog.Logger
	index  PointIndex
	seen   *tsDedupe
}

// New builds a consumer. zl may be nil, in which case structured event logs are dropped.
func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, index PointIndex) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if zl == nil {
		nop := zerolog.Nop()
		zl = &nop
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		zlog:   zl,
		index:  index,
		seen:   newTSDedupe(cfg.DedupeSize),
	}
}

// Start consumes point events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.index == nil {
		return errors.New("kafkaconsumer: missing point index")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka point consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka point consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				obs.IncKafkaConsumerError("consume")
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single message. Undecodable and invalid events are logged,
// counted and skipped so they do not block the partition; index failures are returned
// so the offset is not marked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev ingest.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		c.zlog.Error().Err(err).
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError("invalid")
		obs.ObserveIngest(ev.Op, err)
		c.zlog.Warn().Err(err).
			Str("kind", "invalid").
			Str("layer", ev.Layer).
			Int64("offset", msg.Offset).
			Msg("dropping invalid event")
		return nil
	}

	key := ev.Layer + "\x00" + ev.ID
	ts := ev.TS.UnixNano()
	if !c.seen.shouldApply(key, ts) {
		c.logger.Debug("skipping stale event", "layer", ev.Layer, "id", ev.ID, "ts", ev.TS)
		return nil
	}

	ctx = mylog.WithLayer(ctx, ev.Layer)
	var err error
	switch ev.Op {
	case ingest.OpUpsert:
		_, err = c.index.Put(ctx, model.Point{Layer: ev.Layer, ID: ev.ID, Lat: ev.Lat, Lon: ev.Lon})
	case ingest.OpDelete:
		err = c.index.Remove(ctx, ev.Layer, ev.ID)
		if errors.Is(err, pointindex.ErrNotFound) {
			err = nil
		}
	}
	obs.ObserveIngest(ev.Op, err)
	if err != nil {
		obs.IncKafkaConsumerError("index")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "index").
			Str("op", ev.Op).
			Str("id", ev.ID).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("apply %s %s/%s: %w", ev.Op, ev.Layer, ev.ID, err)
	}
	c.seen.applied(key, ts)

	mylog.FromContext(ctx, c.zlog).Debug().
		Str("event", "ingest").
		Str("op", ev.Op).
		Str("id", ev.ID).
		Msg("applied point event")
	return nil
}
