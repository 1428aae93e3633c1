// Command blewatch follows a running scanner's event stream and prints one line
// per discovered device.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/micro-ha/ble-scanner/internal/logging"
	"github.com/micro-ha/ble-scanner/internal/model"
	"github.com/micro-ha/ble-scanner/internal/stream"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:5000", "scanner base URL")
		targetsOnly = flag.Bool("targets", false, "print target devices only")
		verbose     = flag.Bool("v", false, "log reconnects and status messages")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewWithWriter(os.Stderr, level)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := &linePrinter{out: os.Stdout, targetsOnly: *targetsOnly, logger: logger}
	stream.NewWatcher(*server, logger).Run(ctx, printer.handle)
}

type linePrinter struct {
	out         io.Writer
	targetsOnly bool
	logger      *slog.Logger
}

func (p *linePrinter) handle(env stream.RawEnvelope) {
	switch env.Type {
	case stream.TypeDeviceDiscovered:
		var d model.LiveDevice
		if err := json.Unmarshal(env.Data, &d); err != nil {
			p.logger.Warn("bad device payload", "err", err)
			return
		}
		if p.targetsOnly && !d.IsTarget {
			return
		}
		fmt.Fprintln(p.out, formatDevice(d))
	case stream.TypeAdvisory:
		p.logger.Warn("scanner advisory", "data", string(env.Data))
	default:
		p.logger.Debug("stream message", "type", env.Type)
	}
}

func formatDevice(d model.LiveDevice) string {
	marker := " "
	if d.IsTarget {
		marker = "*"
	}
	name := d.Name
	if name == "" {
		name = "Unknown Device"
	}
	return fmt.Sprintf("%s %s %s %4d dBm  %s (%s)",
		d.LastSeen.Local().Format(time.TimeOnly), marker, d.MACAddress, d.RSSI, name, d.DeviceType)
}
