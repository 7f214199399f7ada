// Package device wires the tag relay from its configuration.
package device

import (
	"context"
	"fmt"
	"io"

	"github.com/robotalks/tagrelay/pkg/api"
	"github.com/robotalks/tagrelay/pkg/arena"
	"github.com/robotalks/tagrelay/pkg/config"
	"github.com/robotalks/tagrelay/pkg/delivery"
	fx "github.com/robotalks/tagrelay/pkg/framework"
	"github.com/robotalks/tagrelay/pkg/latest"
	"github.com/robotalks/tagrelay/pkg/link"
	"github.com/robotalks/tagrelay/pkg/logging"
	"github.com/robotalks/tagrelay/pkg/metrics"
	"github.com/robotalks/tagrelay/pkg/netlog"
	"github.com/robotalks/tagrelay/pkg/reader"
	"github.com/robotalks/tagrelay/pkg/serial"
	"github.com/robotalks/tagrelay/pkg/tag"
	"github.com/robotalks/tagrelay/pkg/transport"
)

// Device owns the process-long shared state and the enabled tasks.
type Device struct {
	Config  *config.Config
	Arena   *arena.Arena
	Slot    *latest.Slot[tag.Record]
	Logs    *netlog.Buffer
	Logger  logging.Logger
	Metrics *metrics.Metrics

	Reader   *reader.Loop
	Delivery *delivery.Loop
	Shipper  *netlog.Shipper
	API      *api.Server
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	// Source replaces the serial port.
	Source io.Reader
	// Clock replaces the system clock in all loops.
	Clock fx.Clock
	// Notifier receives link state changes.
	Notifier link.StateNotifier
}

// New creates a Device from a validated config.
func New(cfg *config.Config, opts Options) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		Config:  cfg,
		Arena:   arena.New(cfg.Arena.Size),
		Slot:    latest.New[tag.Record](),
		Logger:  logging.Glog(),
		Metrics: metrics.New(),
	}
	d.Metrics.WatchArena(d.Arena)

	if cfg.LogShip.Enabled {
		level, _ := logging.ParseLevel(cfg.LogShip.Level)
		dialer, err := transport.NewDialer(cfg.LogShip.URL)
		if err != nil {
			return nil, fmt.Errorf("logship: %w", err)
		}
		d.Logs = netlog.NewBuffer(cfg.LogShip.BufferSize)
		d.Metrics.WatchDropped(d.Logs.Dropped)
		writer := netlog.NewWriter(d.Logs)
		writer.MaxLevel = level
		d.Logger = writer
		d.Shipper = &netlog.Shipper{
			Buffer:   d.Logs,
			Dialer:   dialer,
			Arena:    d.Arena,
			MaxChunk: cfg.LogShip.MaxChunk,
			Backoff:  cfg.LogShip.Backoff.Std(),
			Clock:    opts.Clock,
			Notifier: opts.Notifier,
			Logger:   d.Logger,
			Metrics:  d.Metrics,
		}
	}

	d.Reader = &reader.Loop{
		Source:  opts.Source,
		Arena:   d.Arena,
		Slot:    d.Slot,
		Pace:    cfg.Serial.Pace.Std(),
		Clock:   opts.Clock,
		Logger:  d.Logger,
		Metrics: d.Metrics,
	}

	if cfg.Delivery.Enabled {
		format, _ := tag.ParseIDFormat(cfg.Delivery.Format)
		encoder, err := delivery.NewEncoder(cfg.Delivery.Encoding, format)
		if err != nil {
			return nil, err
		}
		dialer, err := transport.NewDialer(cfg.Delivery.URL)
		if err != nil {
			return nil, fmt.Errorf("delivery: %w", err)
		}
		d.Delivery = &delivery.Loop{
			Slot:     d.Slot,
			Dialer:   dialer,
			Encoder:  encoder,
			Format:   format,
			DeviceID: cfg.DeviceID,
			Backoff:  cfg.Delivery.Backoff.Std(),
			Clock:    opts.Clock,
			Notifier: opts.Notifier,
			Logger:   d.Logger,
			Metrics:  d.Metrics,
		}
	}

	if cfg.API.Enabled {
		d.API = api.NewServer(cfg.API.Addr, d.Metrics.Registry)
		d.API.Logger = d.Logger
	}
	return d, nil
}

// Tasks returns the enabled tasks.
func (d *Device) Tasks() []fx.Runnable {
	tasks := []fx.Runnable{fx.NamedRun(d.Reader.Name(), fx.RunFunc(d.runReader))}
	if d.Delivery != nil {
		tasks = append(tasks, d.Delivery)
	}
	if d.Shipper != nil {
		tasks = append(tasks, d.Shipper)
	}
	if d.API != nil {
		tasks = append(tasks, d.API)
	}
	return tasks
}

// Run runs all enabled tasks until ctx is done. A failing task is logged and
// does not stop the others.
func (d *Device) Run(ctx context.Context) error {
	return fx.NewRunnerWith(ctx).Go(d.Tasks()...).Wait()
}

// runReader opens the serial port unless a source was injected.
func (d *Device) runReader(ctx context.Context) error {
	if d.Reader.Source == nil {
		port, err := serial.Open(serial.Config{
			Device:   d.Config.Serial.Device,
			BaudRate: d.Config.Serial.BaudRate,
		})
		if err != nil {
			return err
		}
		d.Reader.Source = port
	}
	return d.Reader.Run(ctx)
}
