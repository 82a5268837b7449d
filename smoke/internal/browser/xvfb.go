package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// virtualDisplay is the Xvfb server headful Chrome draws on.
type virtualDisplay struct {
	name string
	cmd  *exec.Cmd
}

// xSocket is the Unix socket an X server creates for display name
// (":99" or ":99.0").
func xSocket(name string) string {
	n, _, _ := strings.Cut(strings.TrimPrefix(name, ":"), ".")
	return filepath.Join("/tmp/.X11-unix", "X"+n)
}

// startDisplay runs Xvfb on name with a screen that fits the viewport and
// returns once the display socket exists.
func startDisplay(name string, width, height int, wait time.Duration) (*virtualDisplay, error) {
	screen := fmt.Sprintf("%dx%dx24", max(width, 1920), max(height, 1080))
	cmd := exec.Command("Xvfb", name, "-screen", "0", screen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb: %w", err)
	}
	d := &virtualDisplay{name: name, cmd: cmd}

	sock := xSocket(name)
	deadline := time.Now().Add(wait)
	for {
		if _, err := os.Stat(sock); err == nil {
			return d, nil
		}
		if time.Now().After(deadline) {
			d.stop()
			return nil, fmt.Errorf("xvfb: %s not ready after %s", sock, wait)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (d *virtualDisplay) pid() int {
	if d.cmd.Process == nil {
		return 0
	}
	return d.cmd.Process.Pid
}

func (d *virtualDisplay) stop() {
	if d == nil || d.cmd.Process == nil {
		return
	}
	d.cmd.Process.Kill()
	d.cmd.Wait()
}
