// Package transport implements the Transport Adapter component
// (spec.md §4.3): a bidirectional, ordered, identity-tagged datagram
// channel over a local filesystem path.
//
// spec.md §1 explicitly places the real wire transport (a ROUTER/DEALER
// message bus) out of scope as an external collaborator, and no repo in
// the retrieved pack vendors a Go ZeroMQ binding. Rather than fabricate
// one, the adapter is built on net.UnixConn in SOCK_DGRAM mode against
// a local socket path — the same "identified by a local filesystem
// path, ordered, datagram" shape spec.md §6 calls for, using only the
// standard library for the one concern spec.md itself assigns to an
// external piece of software.
package transport

import (
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/rdpmux/rdpmux/internal/nlog"
	"github.com/rdpmux/rdpmux/internal/rdpcfg"
)

// maxFrame bounds a single datagram: identity header + msgpack body.
// Comfortably larger than any UpdateRecord encoding.
const maxFrame = 4096

// Adapter is a connected, identity-tagged Unix datagram channel.
//
// Connect/Send/Poll/Recv run on the Main I/O Thread; Reconnect/Down are
// called from rdpmux.go's DisplaySwitch on the caller's goroutine, so
// conn is guarded by connMu rather than left as a bare field.
type Adapter struct {
	connMu   sync.RWMutex
	conn     *net.UnixConn
	path     string
	identity string
	cfg      *rdpcfg.Config
	readBuf  []byte
	pending  []byte // frame read by the most recent successful Poll, awaiting Recv
	down     atomic.Bool
}

// New returns an unconnected Adapter; call Connect before Send/Recv/Poll.
func New(cfg *rdpcfg.Config) *Adapter {
	return &Adapter{cfg: cfg, readBuf: make([]byte, maxFrame)}
}

// Config returns the tunables this adapter was constructed with, so
// callers (internal/ioloop's Main I/O Thread) can size their own
// retry/backoff behavior off the same rdpcfg.Config instead of
// duplicating constants.
func (a *Adapter) Config() *rdpcfg.Config { return a.cfg }

// Connect dials the datagram socket at path, tagging this endpoint with
// identity (the 36-character VM uuid, spec.md §6).
func (a *Adapter) Connect(path, identity string) error {
	// Bind our own end to the Linux abstract namespace (empty Name
	// triggers autobind) so the peer has an address to reply to.
	// Unlike TCP, unixgram sockets are not implicitly addressable.
	laddr := &net.UnixAddr{Name: "", Net: "unixgram"}
	raddr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return errors.Wrapf(err, "transport: connect %s", path)
	}
	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()
	a.path = path
	a.identity = identity
	a.down.Store(false)
	return nil
}

// Down reports whether Poll has observed the connection closed since
// the last successful Connect/Reconnect — a supplement grounded on
// original_source/src/rdpmux.c's behavior of checking its zmq socket
// option before reusing it across display switches (spec.md is silent
// on reconnection; see SPEC_FULL.md §11).
func (a *Adapter) Down() bool { return a.down.Load() }

// Reconnect tears down and re-dials the same path/identity.
func (a *Adapter) Reconnect() error {
	a.connMu.Lock()
	old := a.conn
	a.connMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return a.Connect(a.path, a.identity)
}

// Close disconnects the transport; a Poll blocked in its read returns
// with an error. Cleanup calls it after clearing the queue and joining
// the I/O threads, and before unmapping the shared region.
func (a *Adapter) Close() error {
	a.connMu.Lock()
	conn := a.conn
	a.conn = nil
	a.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// frame wire format: [u16 BE identity length][identity bytes][payload].
// This is the adapter's own identity-routing header (spec.md §4.3);
// it is independent of, and wraps, the msgpack-encoded UpdateRecord
// produced by internal/wire.
func encodeFrame(identity string, payload []byte) []byte {
	out := make([]byte, 2+len(identity)+len(payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(identity)))
	n := copy(out[2:], identity)
	copy(out[2+n:], payload)
	return out
}

func decodeFrame(raw []byte) (identity string, payload []byte, err error) {
	if len(raw) < 2 {
		return "", nil, errors.New("transport: frame too short for identity header")
	}
	idLen := int(binary.BigEndian.Uint16(raw[0:2]))
	if 2+idLen > len(raw) {
		return "", nil, errors.New("transport: truncated identity header")
	}
	identity = string(raw[2 : 2+idLen])
	payload = raw[2+idLen:]
	return identity, payload, nil
}

// Send blocks until payload is written or retries are exhausted.
// Transient failures are retried with bounded exponential backoff
// capped at cfg.SendRetryMax (spec.md §9, Open Question "send retry":
// resolved away from the original's indefinite-retry hot-spin).
func (a *Adapter) Send(payload []byte) error {
	frame := encodeFrame(a.identity, payload)
	backoff := a.cfg.SendRetryBase

	var lastErr error
	for attempt := 0; attempt < a.cfg.SendRetryCap; attempt++ {
		a.connMu.RLock()
		conn := a.conn
		a.connMu.RUnlock()
		if conn == nil {
			return errors.New("transport: send on unconnected adapter")
		}
		_, err := conn.Write(frame)
		if err == nil {
			return nil
		}
		lastErr = err
		nlog.Warningf("transport: send attempt %d failed: %v", attempt+1, err)

		time.Sleep(backoff)
		backoff *= 2
		if backoff > a.cfg.SendRetryMax {
			backoff = a.cfg.SendRetryMax
		}
	}
	return errors.Wrapf(lastErr, "transport: send failed after %d attempts", a.cfg.SendRetryCap)
}

// Poll blocks up to timeout waiting for a readable frame, returning
// true if one arrived (and is buffered for the next Recv) or false on
// timeout (spec.md §4.3/§4.8: the main loop's 5ms poll tick).
func (a *Adapter) Poll(timeout time.Duration) (bool, error) {
	a.connMu.RLock()
	conn := a.conn
	a.connMu.RUnlock()
	if conn == nil {
		return false, errors.New("transport: poll on unconnected adapter")
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, errors.Wrap(err, "transport: set read deadline")
	}
	n, err := conn.Read(a.readBuf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		a.down.Store(true)
		return false, errors.Wrap(err, "transport: poll read")
	}
	a.pending = append([]byte(nil), a.readBuf[:n]...)
	return true, nil
}

// Recv returns the identity and decoded-ready payload of the frame
// buffered by Poll. Identity verification against the configured VM
// uuid happens one layer up, in internal/ioloop, per spec.md §4.8 step
// 3 ("verify identity; decode the record").
func (a *Adapter) Recv() (identity string, payload []byte, err error) {
	if a.pending == nil {
		return "", nil, errors.New("transport: recv with no frame buffered by Poll")
	}
	identity, payload, err = decodeFrame(a.pending)
	a.pending = nil
	return identity, payload, err
}
