package apiserver

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
)

// WatchConfig points a watcher at a running API unit.
type WatchConfig struct {
	// Addr is host:port or a full http(s) URL.
	Addr  string
	Token string
	// Reconnect is the pause between connection attempts; zero stops after
	// the first disconnect.
	Reconnect time.Duration
	Clock     clock.Clock
}

// Watch streams messages to fn until ctx is done.
func Watch(ctx context.Context, cfg WatchConfig, fn func(Message)) error {
	endpoint, err := wsEndpoint(cfg.Addr)
	if err != nil {
		return errors.Trace(err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	for {
		err := watchOnce(ctx, endpoint, header, fn)
		if ctx.Err() != nil {
			return nil
		}
		if cfg.Reconnect <= 0 {
			return errors.Trace(err)
		}
		logger.Warningf("watch disconnected: %v; retrying in %s", err, cfg.Reconnect)
		select {
		case <-ctx.Done():
			return nil
		case <-cfg.Clock.After(cfg.Reconnect):
		}
	}
}

func watchOnce(ctx context.Context, endpoint string, header http.Header, fn func(Message)) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return errors.Annotatef(err, "dial %s (status %d)", endpoint, resp.StatusCode)
		}
		return errors.Annotatef(err, "dial %s", endpoint)
	}
	defer conn.Close()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return errors.Trace(err)
		}
		fn(msg)
	}
}

func wsEndpoint(addr string) (string, error) {
	if addr == "" {
		return "", errors.NotValidf("empty api address")
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: addr}
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/ws"
	return u.String(), nil
}
