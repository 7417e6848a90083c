package workers

import (
	"context"
	"log/slog"
	"os"
	"relay-lab/contract"
	"relay-lab/observability"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker logs a liveness line on an interval: process CPU and RSS
// plus the relay delivery counters and the current local connection count.
// Purely observational, it never touches the delivery path.
type HeartbeatWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	monitor  *observability.Monitor
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, registry contract.IRegistry,
	monitor *observability.Monitor, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:      log,
		registry: registry,
		monitor:  monitor,
		interval: interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.monitor.Snapshot()
			w.log.Info("heartbeat",
				"connections", w.registry.Size(),
				"published", stats.Published,
				"delivered_local", stats.DeliveredLocal,
				"dropped", stats.DroppedFrames,
				"malformed", stats.MalformedFrames,
				"presence_events", stats.PresenceEvents,
				"cpu_percent", cpu,
				"ram_bytes", rss,
			)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
