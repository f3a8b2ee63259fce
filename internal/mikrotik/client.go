// Package mikrotik manages PPPoE and hotspot users on a RouterOS router
// through its API port.
package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alijaya/ispportal/internal/settings"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultMaxIdle = 5 * time.Minute
)

var (
	ErrNotConnected = errors.New("mikrotik: router not connected")
	ErrNotFound     = errors.New("mikrotik: entry not found")
)

// Record is one attribute set of a !re sentence.
type Record map[string]string

func (r Record) Int(key string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(r[key]))
	return v
}

func (r Record) Int64(key string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(r[key]), 10, 64)
	return v
}

func (r Record) Bool(key string) bool {
	return r[key] == "true" || r[key] == "yes"
}

// Config addresses one router.
type Config struct {
	Address  string
	Username string
	Password string
	Timeout  time.Duration
	// MaxIdle recycles a connection left unused for longer than this.
	MaxIdle time.Duration
	Dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// Client keeps one authenticated connection and serialises commands on it.
// A connection that fails mid-command is dropped and redialled on the next
// call.
type Client struct {
	config Config
	logger zerolog.Logger

	mu       sync.Mutex
	conn     *conn
	lastUsed time.Time
}

func NewClient(config Config, logger zerolog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxIdle <= 0 {
		config.MaxIdle = DefaultMaxIdle
	}
	if config.Dial == nil {
		dialer := &net.Dialer{Timeout: config.Timeout}
		config.Dial = dialer.DialContext
	}
	return &Client{config: config, logger: logger}
}

// ConfigFromSettings reads the router address and credentials.
func ConfigFromSettings(snap settings.Snapshot) Config {
	host := snap.String(settings.KeyMikrotikHost, "")
	port := snap.Int(settings.KeyMikrotikPort, settings.DefaultMikrotikPort)

	var address string
	if host != "" {
		address = net.JoinHostPort(host, strconv.Itoa(port))
	}
	return Config{
		Address:  address,
		Username: snap.String(settings.KeyMikrotikUser, ""),
		Password: snap.String(settings.KeyMikrotikPassword, ""),
	}
}

// FromSettings builds a client for the router configured in settings.
func FromSettings(snap settings.Snapshot, logger zerolog.Logger) *Client {
	return NewClient(ConfigFromSettings(snap), logger)
}

func (c *Client) Configured() bool {
	return c.config.Address != ""
}

// Close drops the connection. The client stays usable.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil && time.Since(c.lastUsed) < c.config.MaxIdle {
		return nil
	}
	_ = c.dropLocked()

	if !c.Configured() {
		return ErrNotConnected
	}

	raw, err := c.config.Dial(ctx, "tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	cn := newConn(raw)
	_ = raw.SetDeadline(c.deadline(ctx))

	if err := cn.login(c.config.Username, c.config.Password); err != nil {
		cn.Close()
		return fmt.Errorf("login to %s: %w", c.config.Address, err)
	}

	c.conn = cn
	c.lastUsed = time.Now()
	c.logger.Debug().Str("router", c.config.Address).Msg("connected to router")
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// Run sends a command with its attribute and query words.
func (c *Client) Run(ctx context.Context, command string, args ...string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	_ = c.conn.raw.SetDeadline(c.deadline(ctx))

	reply, err := c.conn.do(append([]string{command}, args...)...)
	var apiErr *Error
	if err != nil && !errors.As(err, &apiErr) {
		// transport failure, the stream position is unknown
		_ = c.dropLocked()
		c.logger.Warn().Err(err).Str("command", command).Msg("router command failed")
		return nil, err
	}
	c.lastUsed = time.Now()
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Execute runs a print-style command and returns its records.
func (c *Client) Execute(ctx context.Context, command string, args ...string) ([]Record, error) {
	reply, err := c.Run(ctx, command, args...)
	if err != nil {
		return nil, err
	}
	return reply.Re, nil
}

// Identity returns the router's system identity.
func (c *Client) Identity(ctx context.Context) (string, error) {
	records, err := c.Execute(ctx, "/system/identity/print")
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", ErrNotFound
	}
	return records[0]["name"], nil
}

// attr renders =key=value, skipping empty values.
func attr(args []string, key, value string) []string {
	if value == "" {
		return args
	}
	return append(args, "="+key+"="+value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
