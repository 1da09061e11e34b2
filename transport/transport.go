package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/databox/workspace"
)

// DefaultPollInterval is how often either side checks for a pending file.
const DefaultPollInterval = 500 * time.Millisecond

// FilePermission is the mode for exchange files.
const FilePermission = 0o600

// ErrTimeout is returned by Await when no response appears within the
// deadline.
var ErrTimeout = errors.New("no response within deadline")

// ErrBusy is returned by Submit while a previous request is still
// unconsumed. The channel has a single request slot.
var ErrBusy = errors.New("a request is already outstanding")

// writeAtomic writes data to a sibling temp file and renames it into
// place so a polling reader never observes a partial file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, FilePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}
	return nil
}

// exists reports whether path names an existing file.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Host is the executor-side endpoint of the channel. Each submitted
// request carries a fencing token that the worker echoes with its
// response; a response arriving with a different token belongs to an
// abandoned request and is discarded instead of delivered.
type Host struct {
	logger   *zap.Logger
	ws       *workspace.Workspace
	interval time.Duration
	token    string
}

// NewHost creates the host endpoint over a workspace. A non-positive
// interval falls back to DefaultPollInterval.
func NewHost(logger *zap.Logger, ws *workspace.Workspace, interval time.Duration) *Host {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Host{logger: logger, ws: ws, interval: interval}
}

// Submit publishes a script as the pending request. It fails with ErrBusy
// if a request is still unconsumed. A leftover response is necessarily a
// late landing from an abandoned request (accepted responses are consumed
// by Await) and is swept before the new request is published.
func (h *Host) Submit(code string) error {
	if exists(h.ws.RequestPath()) {
		return ErrBusy
	}
	if exists(h.ws.ResponsePath()) {
		h.logger.Warn("sweeping abandoned response before submit")
		h.clearResponse()
	}

	h.token = uuid.NewString()
	if err := writeAtomic(h.ws.RequestTokenPath(), []byte(h.token)); err != nil {
		return err
	}
	if err := writeAtomic(h.ws.RequestPath(), []byte(code)); err != nil {
		return err
	}

	h.logger.Debug("request submitted", zap.Int("code_len", len(code)))
	return nil
}

// clearResponse drops the pending response and its token.
func (h *Host) clearResponse() {
	for _, path := range []string{h.ws.ResponsePath(), h.ws.ResponseTokenPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("failed to remove response file", zap.String("path", path), zap.Error(err))
		}
	}
}

// Await polls for the response file on the configured interval until it
// appears, the timeout expires, or ctx is cancelled. On success the
// response is consumed: read and deleted.
func (h *Host) Await(ctx context.Context, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if exists(h.ws.ResponsePath()) {
			echo, err := os.ReadFile(h.ws.ResponseTokenPath())
			switch {
			case err != nil:
				// The worker publishes the response before its token;
				// a missing token means it is mid-write. Check again on
				// the next tick.
			case string(echo) == h.token:
				data, err := os.ReadFile(h.ws.ResponsePath())
				if err != nil {
					return nil, fmt.Errorf("failed to read response: %w", err)
				}
				h.clearResponse()
				return data, nil
			default:
				// A late response from an abandoned request; drop it
				// and keep waiting for ours.
				h.logger.Warn("discarding stale response", zap.String("echo", string(echo)))
				h.clearResponse()
			}
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Listener is the worker-side endpoint of the channel. The fencing token
// consumed with a request is echoed alongside the matching response.
type Listener struct {
	logger   *zap.Logger
	ws       *workspace.Workspace
	interval time.Duration
	token    string
}

// NewListener creates the worker endpoint over a workspace. A
// non-positive interval falls back to DefaultPollInterval.
func NewListener(logger *zap.Logger, ws *workspace.Workspace, interval time.Duration) *Listener {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Listener{logger: logger, ws: ws, interval: interval}
}

// Next blocks until a request file appears, then consumes it immediately
// (read and delete) and returns the script text.
func (l *Listener) Next(ctx context.Context) (string, error) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if exists(l.ws.RequestPath()) {
			// The host publishes the token before the request, so it is
			// already in place by the time the request appears.
			token, err := os.ReadFile(l.ws.RequestTokenPath())
			if err != nil && !os.IsNotExist(err) {
				return "", fmt.Errorf("failed to read request token: %w", err)
			}
			l.token = string(token)

			data, err := os.ReadFile(l.ws.RequestPath())
			if err != nil {
				return "", fmt.Errorf("failed to read request: %w", err)
			}
			if err := os.Remove(l.ws.RequestPath()); err != nil {
				return "", fmt.Errorf("failed to consume request: %w", err)
			}
			if err := os.Remove(l.ws.RequestTokenPath()); err != nil && !os.IsNotExist(err) {
				l.logger.Warn("failed to remove consumed request token", zap.Error(err))
			}
			l.logger.Debug("request consumed", zap.Int("code_len", len(data)))
			return string(data), nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Respond publishes the response payload atomically, then echoes the
// consumed request's token. The payload goes first so the host never
// observes a matched token without its response in place.
func (l *Listener) Respond(payload []byte) error {
	if err := writeAtomic(l.ws.ResponsePath(), payload); err != nil {
		return err
	}
	return writeAtomic(l.ws.ResponseTokenPath(), []byte(l.token))
}
