package proc

import (
	"context"
	"time"

	"github.com/leeineian/vigil/sys"
)

// The event log is write-heavy while channels are busy; periodic WAL
// checkpoints keep the sidecar file from growing unbounded between restarts.
const maintenanceInterval = 6 * time.Hour

func init() {
	sys.RegisterDaemon(sys.LogDatabase, startMaintenance)
}

func startMaintenance(ctx context.Context) (bool, func(), func()) {
	if sys.DB == nil {
		return false, nil, nil
	}

	done := make(chan struct{})
	run := func() {
		defer close(done)
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runMaintenance(ctx)
			case <-ctx.Done():
				return
			}
		}
	}
	shutdown := func() {
		<-done
		// One last checkpoint so a restart starts from a compact file.
		runMaintenance(context.Background())
	}
	return true, run, shutdown
}

func runMaintenance(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, 30*time.Second)
	defer cancel()

	if _, err := sys.DB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		sys.LogWarn("WAL checkpoint failed: %v", err)
		return
	}
	if _, err := sys.DB.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		sys.LogWarn("PRAGMA optimize failed: %v", err)
		return
	}
	sys.LogDatabase("Maintenance pass complete.")
}
