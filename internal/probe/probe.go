// Package probe implements the reachability checks fed to the monitor.
//
// Every Prober bounds its own work by the configured timeout and reports
// failure of any kind (timeout, unreachable host, malformed reply) as false.
package probe

import (
	"context"
	"fmt"
	"time"

	"switchmonitor/internal/config"
	"switchmonitor/internal/models"
)

// Prober answers whether a device at ip is reachable.
type Prober interface {
	Probe(ctx context.Context, ip string) bool
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, ip string) bool

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, ip string) bool { return f(ctx, ip) }

// New builds the prober selected by cfg.Kind.
func New(cfg config.Probe) (Prober, error) {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Second
	}

	switch cfg.Kind {
	case config.ProbeICMP:
		return NewICMP(timeout, cfg.ICMP.Privileged), nil
	case config.ProbeSNMP:
		return NewSNMP(cfg.SNMP, timeout)
	default:
		return nil, fmt.Errorf("unknown probe kind %q", cfg.Kind)
	}
}

// DeviceFunc adapts a Prober to the monitor's per-device probe signature.
func DeviceFunc(p Prober) func(ctx context.Context, device models.Device) bool {
	return func(ctx context.Context, device models.Device) bool {
		return p.Probe(ctx, device.IP)
	}
}
