package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/infrastructure/resilience"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// Config tunes the facade. Zero values get production defaults.
type Config struct {
	// Timeout bounds each HTTP request including retries.
	Timeout time.Duration
	// Logger receives transport diagnostics. Nil discards them.
	Logger *zap.Logger
}

// DefaultConfig returns production-ready client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// Client is the consumer-facing handle on one remote session. File and
// process operations go over HTTP; events arrive on a websocket channel
// owned by the client's read loop.
type Client struct {
	baseURL   string
	sessionID string

	http    *resty.Client
	breaker *resilience.Breaker
	conn    *websocket.Conn
	logger  *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	httpMu sync.RWMutex

	handlerMu sync.RWMutex
	handlers  map[types.EventType]map[uint64]Handler
	nextReg   uint64

	procMu  sync.Mutex
	procs   map[string]*Process
	orphans map[string][]types.Event
	pending int
}

// Connect dials the backend and establishes the event channel for
// sessionID, creating the session server-side if it does not exist.
func Connect(ctx context.Context, baseURL, sessionID string) (*Client, error) {
	return ConnectWithConfig(ctx, baseURL, sessionID, DefaultConfig())
}

// ConnectWithConfig is Connect with explicit tuning.
func ConnectWithConfig(ctx context.Context, baseURL, sessionID string, cfg Config) (*Client, error) {
	if sessionID == "" {
		return nil, types.InvalidArgument("session id is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, types.InvalidArgument("invalid base url %q", baseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:   base.String(),
		sessionID: sessionID,
		logger:    logger,
		handlers:  make(map[types.EventType]map[uint64]Handler),
		procs:     make(map[string]*Process),
		orphans:   make(map[string][]types.Event),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Retrying transport under a resty client, fronted by a breaker so a
	// dead backend fails fast instead of queueing timeouts.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("User-Agent", "devsession-client/1.0")
	c.http.SetTransport(retryClient.HTTPClient.Transport)

	c.breaker = resilience.New("devsession-api", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	wsURL := *base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/ws"
	wsURL.RawQuery = url.Values{"session": {sessionID}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		c.cancel()
		if resp != nil {
			return nil, types.TransportError("event channel dial failed: %v (status %d)", err, resp.StatusCode)
		}
		return nil, types.TransportError("event channel dial failed: %v", err)
	}
	c.conn = conn

	go c.readLoop()

	logger.Info("session connected",
		zap.String("session_id", sessionID),
		zap.String("base_url", c.baseURL),
	)
	return c, nil
}

// SessionID returns the session this client is bound to.
func (c *Client) SessionID() string {
	return c.sessionID
}

// PreviewURL returns the externally reachable address of the session's
// served content.
func (c *Client) PreviewURL() string {
	return fmt.Sprintf("%s/preview/%s/", c.baseURL, c.sessionID)
}

// SetTimeout configures the per-request HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpMu.Lock()
	defer c.httpMu.Unlock()
	c.http.SetTimeout(d)
}

// SetRetry configures HTTP retry behavior.
func (c *Client) SetRetry(maxRetries int, minWait, maxWait time.Duration) {
	c.httpMu.Lock()
	defer c.httpMu.Unlock()
	c.http.SetRetryCount(maxRetries).
		SetRetryWaitTime(minWait).
		SetRetryMaxWaitTime(maxWait)
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// BreakerCounts returns circuit breaker statistics.
func (c *Client) BreakerCounts() resilience.Counts {
	return c.breaker.Counts()
}

// Close tears down the event channel. Processes the session spawned keep
// running server-side; only this client's view of them ends.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
		c.failLiveProcesses(types.TransportError("client closed before process completion"))
		c.logger.Info("session client closed", zap.String("session_id", c.sessionID))
	})
	return nil
}

// closed reports whether Close or a transport drop already happened.
func (c *Client) closed() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}
