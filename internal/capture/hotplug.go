package capture

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"
)

// HotplugMonitor watches udev for removal of the devices a session owns.
type HotplugMonitor struct {
	logger   *slog.Logger
	onRemove func(device string)

	mu      sync.Mutex
	devices map[string]struct{}
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor returns nil when there is nothing to watch.
func NewHotplugMonitor(logger *slog.Logger, onRemove func(device string), devices ...string) *HotplugMonitor {
	watched := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		if d = strings.TrimSpace(d); d != "" {
			watched[d] = struct{}{}
		}
	}
	if len(watched) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HotplugMonitor{logger: logger, onRemove: onRemove, devices: watched}
}

// Start connects to the udev netlink socket. Connection failure is logged
// and otherwise ignored; device loss is then only noticed on read errors.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("hotplug monitor unavailable", "error", err)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	go m.loop(ctx, conn, m.quit)
	return nil
}

func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	_ = m.conn.Close()
	m.conn = nil
	m.running = false
}

func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildRemoveMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case ev := <-queue:
			m.handleEvent(ev)
		case err := <-errs:
			m.logger.Warn("hotplug monitor error", "error", err)
		}
	}
}

// buildRemoveMatcher matches removal of video and sound devices.
func buildRemoveMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux|sound",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ev netlink.UEvent) {
	dev := deviceName(ev)
	if dev == "" {
		return
	}
	m.mu.Lock()
	_, watched := m.devices[dev]
	m.mu.Unlock()
	if !watched {
		m.logger.Debug("ignoring removal of unwatched device", "device", dev)
		return
	}

	m.logger.Warn("capture device removed", "device", dev)
	if m.onRemove != nil {
		m.onRemove(dev)
	}
}

func deviceName(ev netlink.UEvent) string {
	if name := ev.Env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/") {
			name = "/dev/" + name
		}
		return name
	}
	devpath := ev.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
