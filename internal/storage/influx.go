package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"switchmonitor/internal/config"
	"switchmonitor/internal/models"
)

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink mirrors transitions into an InfluxDB bucket, one point per event.
type InfluxSink struct {
	client      influxdb2.Client
	writer      pointWriter
	measurement string
}

// NewInfluxSink builds a blocking-write sink for the configured bucket.
func NewInfluxSink(cfg config.Influx) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:      client,
		writer:      client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
	}, nil
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influx" }

// Record implements Sink.
func (s *InfluxSink) Record(ctx context.Context, ev models.TransitionEvent) error {
	up := 0
	if ev.NewStatus == models.StatusUp {
		up = 1
	}
	point := influxdb2.NewPoint(s.measurement,
		map[string]string{
			"ip":   ev.Device.IP,
			"name": ev.Device.Name,
		},
		map[string]interface{}{
			"status": string(ev.NewStatus),
			"up":     up,
		},
		ev.Timestamp)

	if err := s.writer.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close flushes and closes the client.
func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
