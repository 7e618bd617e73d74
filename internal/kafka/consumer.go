// Package kafka ingests task lifecycle events from ETL runners and feeds
// them to the monitoring service.
package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/monitor"
)

type Consumer struct {
	reader *kafka.Reader
	svc    *monitor.Service
	logger *logging.Logger
	cancel context.CancelFunc
}

func NewConsumer(cfg config.Config, svc *monitor.Service) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{cfg.Kafka.Broker},
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	return &Consumer{reader: reader, svc: svc, logger: svc.Logger()}
}

// Start reads events until Close is called.
func (c *Consumer) Start(wg *sync.WaitGroup) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var ev monitor.TaskEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}

			if ev.Event == "" || (ev.Event == "started" && ev.TaskID == "") ||
				(ev.Event != "started" && ev.SessionID == "") {
				c.logger.Errorf("Invalid message: missing event, task_id, or session_id")
				continue
			}

			c.svc.QueueEvent(ev)
		}
	}()
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
