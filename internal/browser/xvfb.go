package browser

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// displayWarmup is how long Xvfb gets before Chrome connects to it.
const displayWarmup = 500 * time.Millisecond

// display is an Xvfb virtual screen for headful recordings.
type display struct {
	name   string
	cmd    *exec.Cmd
	logger *slog.Logger
}

func startDisplay(name string, logger *slog.Logger) (*display, error) {
	cmd := exec.Command("Xvfb", name, "-screen", "0", "1920x1080x24", "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("xvfb %s: %w", name, err)
	}
	time.Sleep(displayWarmup)
	logger.Info("browser: virtual display up", "display", name, "pid", cmd.Process.Pid)
	return &display{name: name, cmd: cmd, logger: logger}, nil
}

func (d *display) stop() {
	if d.cmd.Process == nil {
		return
	}
	_ = d.cmd.Process.Kill()
	_ = d.cmd.Wait()
	d.logger.Info("browser: virtual display down", "display", d.name)
}
