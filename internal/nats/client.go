package nats

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned by requests made without a connection.
var ErrNotConnected = errors.New("not connected to NATS")

// Controller is the camera side of the control subjects.
type Controller interface {
	DeviceID() string
	StartAcquisition() error
	StopAcquisition() error
}

// Client publishes camera state and statistics and answers control requests.
// Publishing degrades to a no-op while NATS is unavailable.
type Client struct {
	url       string
	deviceID  string
	conn      *nats.Conn
	subs      []*nats.Subscription
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
}

// NewClient creates a client for one camera.
func NewClient(url, deviceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:      url,
		deviceID: deviceID,
		logger:   logger.With("component", "nats-client", "device_id", deviceID),
	}
}

// Connect establishes the connection. The caller may keep running without
// NATS when it fails.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := nats.Connect(c.url,
		nats.Name("camnode-"+c.deviceID),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setConnected(false)
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setConnected(true)
			c.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Serve subscribes ctrl to the start and stop control subjects. Each request
// gets a ControlReply.
func (c *Client) Serve(ctrl Controller) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	actions := map[string]func() error{
		ActionStart: ctrl.StartAcquisition,
		ActionStop:  ctrl.StopAcquisition,
	}
	for action, fn := range actions {
		sub, err := c.conn.Subscribe(SubjectControl(ctrl.DeviceID(), action), c.controlHandler(action, fn))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", action, err)
		}
		c.subs = append(c.subs, sub)
	}
	return nil
}

func (c *Client) controlHandler(action string, fn func() error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		req, err := UnmarshalControlRequest(msg.Data)
		if err != nil {
			c.reply(msg, ControlReply{Error: "invalid request: " + err.Error()})
			return
		}

		c.logger.Info("Received control command", "action", action, "reason", req.Reason)

		if err := fn(); err != nil {
			c.logger.Warn("Control command failed", "action", action, "error", err)
			c.reply(msg, ControlReply{Error: err.Error()})
			return
		}
		c.reply(msg, ControlReply{OK: true})
	}
}

func (c *Client) reply(msg *nats.Msg, r ControlReply) {
	if msg.Reply == "" {
		return
	}
	data, err := r.Marshal()
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		c.logger.Warn("Failed to send control reply", "error", err)
	}
}

// PublishState publishes an acquisition state change.
func (c *Client) PublishState(m StateMessage) {
	c.publish(SubjectCameraState(c.deviceID), m.Marshal)
}

// PublishStats publishes a stream statistics snapshot.
func (c *Client) PublishStats(m StatsMessage) {
	c.publish(SubjectCameraStats(c.deviceID), m.Marshal)
}

func (c *Client) publish(subject string, marshal func() ([]byte, error)) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := marshal()
	if err != nil {
		c.logger.Warn("Failed to marshal message", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		c.logger.Warn("Failed to publish", "subject", subject, "error", err)
	}
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close unsubscribes and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.logger.Debug("NATS client closed")
}

// Requester sends control requests to a remote camnode.
type Requester struct {
	conn    *nats.Conn
	timeout time.Duration
}

// NewRequester connects to url. Requests time out after timeout.
func NewRequester(url string, timeout time.Duration) (*Requester, error) {
	conn, err := nats.Connect(url,
		nats.Name("camnode-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Requester{conn: conn, timeout: timeout}, nil
}

// Start asks the camera deviceID to start acquiring.
func (r *Requester) Start(deviceID, reason string) error {
	return r.request(deviceID, ActionStart, reason)
}

// Stop asks the camera deviceID to stop acquiring.
func (r *Requester) Stop(deviceID, reason string) error {
	return r.request(deviceID, ActionStop, reason)
}

func (r *Requester) request(deviceID, action, reason string) error {
	data, err := ControlRequest{Reason: reason}.Marshal()
	if err != nil {
		return err
	}

	msg, err := r.conn.Request(SubjectControl(deviceID, action), data, r.timeout)
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, deviceID, err)
	}

	reply, err := UnmarshalControlReply(msg.Data)
	if err != nil {
		return fmt.Errorf("invalid reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("%s %s: %s", action, deviceID, reply.Error)
	}
	return nil
}

// Close closes the requester connection.
func (r *Requester) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}
