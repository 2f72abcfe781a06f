// Package notify shows desktop notifications for mode, profile and preview
// switches over the freedesktop notification service on the session bus.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"pinfe/internal/types"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	method     = busName + ".Notify"

	appName   = "pinfe"
	expireMs  = int32(1500)
	queueSize = 4
)

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Notifier posts notifications from its own goroutine so callers on the
// engine goroutine never wait on the bus. Successive notifications replace
// each other.
type Notifier struct {
	obj    caller
	conn   *dbus.Conn
	logger *slog.Logger
	queue  chan notice
	done   chan struct{}
	once   sync.Once

	replaceID uint32
}

// New connects to the session bus.
func New(logger *slog.Logger) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	n := newNotifier(conn.Object(busName, objectPath), logger)
	n.conn = conn
	return n, nil
}

func newNotifier(obj caller, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		obj:    obj,
		logger: logger,
		queue:  make(chan notice, queueSize),
		done:   make(chan struct{}),
	}
	go n.loop()
	return n
}

type notice struct {
	summary string
	body    string
}

// ModeChanged queues a notification for mode.
func (n *Notifier) ModeChanged(mode types.InputMode) {
	summary := "English"
	if mode == types.ModeChinese {
		summary = "中文 (Pinyin)"
	}
	n.Notice(summary, "Input mode: "+mode.String())
}

// Notice queues a notification. It never blocks; when the queue is full
// the notification is dropped.
func (n *Notifier) Notice(summary, body string) {
	if n == nil {
		return
	}
	select {
	case n.queue <- notice{summary: summary, body: body}:
	default:
		n.logger.Debug("notification dropped", "summary", summary)
	}
}

func (n *Notifier) loop() {
	defer close(n.done)
	for note := range n.queue {
		if err := n.post(note); err != nil {
			n.logger.Warn("notification failed", "err", err)
		}
	}
}

func (n *Notifier) post(note notice) error {
	call := n.obj.Call(method, 0,
		appName,
		n.replaceID,
		"input-keyboard",
		note.summary,
		note.body,
		[]string{},
		map[string]dbus.Variant{"transient": dbus.MakeVariant(true)},
		expireMs,
	)
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	n.replaceID = id
	return nil
}

// Close drains pending notifications and closes the bus connection.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	var err error
	n.once.Do(func() {
		close(n.queue)
		<-n.done
		if n.conn != nil {
			err = n.conn.Close()
		}
	})
	return err
}
