package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tether-io/tether-go/pkg/bufpool"
	"github.com/tether-io/tether-go/pkg/transport"
)

// Supervisor errors.
var (
	ErrAlreadyRunning    = errors.New("supervisor already running")
	ErrAttemptsExhausted = errors.New("connect attempts exhausted")
)

// State represents the supervisor state.
type State uint8

const (
	// StateIdle indicates Run has not been called.
	StateIdle State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates the supervisor is waiting to retry.
	StateReconnecting

	// StateClosed indicates Run has returned.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Resolver returns the remote address for the next attempt.
type Resolver func(ctx context.Context) (string, error)

// Config configures a Supervisor.
type Config struct {
	// Remote is the peer address. Ignored when Resolve is set.
	Remote string

	// Resolve looks the peer up before every attempt.
	Resolve Resolver

	// Client is the configuration for every client. When Client.Pool is
	// nil a single pool is created and shared by all attempts.
	Client transport.ClientConfig

	// Dispatcher receives callbacks from every client.
	Dispatcher transport.Dispatcher

	// Backoff controls the delay between attempts.
	Backoff BackoffConfig

	// MaxAttempts bounds consecutive failed attempts. Zero retries forever.
	MaxAttempts int

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// OnStateChange is called on every state transition.
	OnStateChange func(oldState, newState State)
}

// Supervisor keeps a connection alive. Clients cannot be reused after
// they close, so every attempt builds a fresh one.
type Supervisor struct {
	remote        string
	resolve       Resolver
	clientCfg     transport.ClientConfig
	dispatcher    transport.Dispatcher
	backoff       *Backoff
	maxAttempts   int
	logger        *slog.Logger
	onStateChange func(oldState, newState State)

	running atomic.Bool

	mu      sync.RWMutex
	state   State
	current *transport.Client
}

// NewSupervisor creates a supervisor. Call Run to start it.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	if cfg.Remote == "" && cfg.Resolve == nil {
		return nil, fmt.Errorf("%w: remote address or resolver is required", transport.ErrInvalidArgument)
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", transport.ErrInvalidArgument)
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, err
	}
	if cfg.Client.Pool == nil {
		cfg.Client.Pool = bufpool.New(bufpool.Config{
			BufferSize:   cfg.Client.BufferSize,
			InitialCount: cfg.Client.PoolInitialCount,
			GrowBy:       cfg.Client.PoolGrowBy,
		})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client.Logger == nil {
		cfg.Client.Logger = cfg.Logger
	}

	return &Supervisor{
		remote:        cfg.Remote,
		resolve:       cfg.Resolve,
		clientCfg:     cfg.Client,
		dispatcher:    cfg.Dispatcher,
		backoff:       NewBackoff(cfg.Backoff),
		maxAttempts:   cfg.MaxAttempts,
		logger:        cfg.Logger,
		onStateChange: cfg.OnStateChange,
	}, nil
}

// Run connects and reconnects until ctx is done or MaxAttempts consecutive
// attempts fail. It returns nil when stopped through ctx.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.setState(StateClosed)

	failures := 0
	for ctx.Err() == nil {
		s.setState(StateConnecting)

		c, err := s.attempt(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			s.logger.Warn("connect attempt failed",
				"attempt", failures,
				"error", err)
			if s.maxAttempts > 0 && failures >= s.maxAttempts {
				return fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, failures, err)
			}
			s.setState(StateReconnecting)
			if s.backoff.Wait(ctx) != nil {
				return nil
			}
			continue
		}

		failures = 0
		s.backoff.Reset()
		s.setCurrent(c)
		s.setState(StateConnected)
		s.logger.Info("connected", "remote", c.Remote(), "connection", c.ConnectionID())

		select {
		case <-c.Done():
			s.setCurrent(nil)
			s.logger.Warn("connection lost",
				"remote", c.Remote(),
				"connection", c.ConnectionID(),
				"error", c.Err())
			s.setState(StateReconnecting)
			if s.backoff.Wait(ctx) != nil {
				return nil
			}
		case <-ctx.Done():
			c.Close()
			<-c.Done()
			s.setCurrent(nil)
			return nil
		}
	}
	return nil
}

func (s *Supervisor) attempt(ctx context.Context) (*transport.Client, error) {
	remote := s.remote
	if s.resolve != nil {
		r, err := s.resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve: %w", err)
		}
		remote = r
	}

	c, err := transport.NewClient(remote, s.dispatcher, s.clientCfg)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Send writes data on the current connection.
func (s *Supervisor) Send(data []byte) error {
	c := s.Current()
	if c == nil {
		return transport.ErrNotConnected
	}
	return c.Send(data)
}

// Current returns the connected client, or nil between connections.
func (s *Supervisor) Current() *transport.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// State returns the current supervisor state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pool returns the buffer pool shared by all clients.
func (s *Supervisor) Pool() *bufpool.Pool {
	return s.clientCfg.Pool
}

// BackoffAttempts returns the number of retries since the last success.
func (s *Supervisor) BackoffAttempts() int {
	return s.backoff.Attempts()
}

func (s *Supervisor) setCurrent(c *transport.Client) {
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
}

func (s *Supervisor) setState(newState State) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	s.mu.Unlock()

	if oldState != newState && s.onStateChange != nil {
		s.onStateChange(oldState, newState)
	}
}
