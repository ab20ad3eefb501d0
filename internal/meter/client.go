// Package meter implements the line-oriented read protocol spoken by the power
// meters.
//
// A poll is one TCP session: connect, send the read command, accumulate the
// plaintext reply until the terminal channel value has arrived, close.
//
// The terminal value counts as complete as soon as any byte other than a digit
// or decimal point follows it, so a meter that omits the final newline and
// keeps the socket open does not hold the session until the deadline. A value
// still at the very end of the buffer when the deadline fires is accepted too.
//
// Session lifecycle:
//
//	Idle -> Connecting -> Connected -> Receiving -> Closing -> Done
//	                 \          \            \
//	                  +----------+------------+--> Failed
//
// The session timeout is applied as a context deadline covering the whole
// connect-and-read phase. The client never retries.
package meter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a whole session.
	DefaultTimeout = 5 * time.Second
	// DefaultCommand is sent once the connection is up.
	DefaultCommand = "read all"
	// DefaultTerminalChannel is the last channel reported by the current device
	// family (channels 0 through 13).
	DefaultTerminalChannel = 13
)

var (
	ErrConnectionTimeout = errors.New("meter connection timed out")
	ErrConnectionError   = errors.New("meter connection failed")
)

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReceiving
	StateClosing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReceiving:
		return "receiving"
	case StateClosing:
		return "closing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dialer opens the transport connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds per device family protocol parameters.
type Config struct {
	Timeout         time.Duration
	Command         string
	TerminalChannel int
}

// DefaultConfig returns the parameters of the current device family.
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		Command:         DefaultCommand,
		TerminalChannel: DefaultTerminalChannel,
	}
}

// Client starts protocol sessions against meters.
type Client struct {
	cfg    Config
	dialer Dialer

	terminalDone    *regexp.Regexp
	terminalPartial *regexp.Regexp
}

// NewClient creates a client. Zero fields in cfg fall back to the defaults.
func NewClient(cfg Config, dialer Dialer) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Command == "" {
		cfg.Command = def.Command
	}
	if cfg.TerminalChannel <= 0 {
		cfg.TerminalChannel = def.TerminalChannel
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	value := `[ \t]*:[ \t]*[-+]?(?:\d+\.?\d*|\.\d+)`
	prefix := fmt.Sprintf(`\bchannel_%d`, cfg.TerminalChannel)

	return &Client{
		cfg:             cfg,
		dialer:          dialer,
		terminalDone:    regexp.MustCompile(prefix + value + `[^\d.]`),
		terminalPartial: regexp.MustCompile(prefix + value),
	}
}

// Fetch runs one session against host:port and returns the raw reply text.
//
// On ErrConnectionTimeout the text received so far is returned alongside the
// error so callers can decide whether a partial dump is usable.
func (c *Client) Fetch(ctx context.Context, host string, port int) (string, error) {
	return c.NewSession().Run(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewSession returns an idle session.
func (c *Client) NewSession() *Session {
	return &Session{client: c, state: StateIdle}
}

// Session is a single connect/read/close exchange. It is not reusable.
type Session struct {
	client *Client
	state  State
	trace  []State
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Trace lists every state the session entered, in order.
func (s *Session) Trace() []State {
	return append([]State(nil), s.trace...)
}

func (s *Session) enter(state State) {
	s.state = state
	s.trace = append(s.trace, state)
}

func (s *Session) fail(sentinel error, cause error) error {
	s.enter(StateFailed)
	return fmt.Errorf("%w: %v", sentinel, cause)
}

// Run executes the session against addr.
func (s *Session) Run(ctx context.Context, addr string) (string, error) {
	if s.state != StateIdle {
		return "", fmt.Errorf("session already used (state %s)", s.state)
	}
	cfg := s.client.cfg

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	s.enter(StateConnecting)
	conn, err := s.client.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", s.fail(classify(ctx, err), err)
	}
	defer conn.Close()
	s.enter(StateConnected)

	// The deadline interrupts any blocked read or write.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, cfg.Command); err != nil {
		return "", s.fail(classify(ctx, err), err)
	}
	s.enter(StateReceiving)

	var buf strings.Builder
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if s.client.terminalDone.MatchString(buf.String()) {
				s.enter(StateClosing)
				s.enter(StateDone)
				return buf.String(), nil
			}
		}
		if err == nil {
			continue
		}

		received := buf.String()
		if errors.Is(err, io.EOF) {
			// Peer closed without the terminal line; keep what arrived.
			s.enter(StateClosing)
			s.enter(StateDone)
			return received, nil
		}
		if ctx.Err() != nil && s.client.terminalPartial.MatchString(received) {
			// Terminal value arrived but the line was never terminated.
			s.enter(StateClosing)
			s.enter(StateDone)
			return received, nil
		}
		return received, s.fail(classify(ctx, err), err)
	}
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrConnectionTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrConnectionTimeout
	}
	return ErrConnectionError
}
