// File: transport/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/internal/framequeue"
	"github.com/momentics/hioload-wsmsg/session"
	"go.uber.org/zap"
)

// closeFlushTimeout bounds the final flush when the transport is closed.
const closeFlushTimeout = time.Second

// Notifier receives connection events raised by the read loop.
type Notifier interface {
	Notify(ctx context.Context, ev session.Event) error
}

// Conn is a server-side WebSocket transport implementing api.Transport.
type Conn struct {
	nc    net.Conn
	r     io.Reader
	opts  Options
	log   *zap.Logger
	queue *framequeue.Queue

	// inbound message type while a fragmented message is open
	readType api.MessageType

	writeMu sync.Mutex
	w       *bufio.Writer
	outMore bool
	outType api.MessageType

	closeOnce sync.Once
	closed    atomic.Bool
}

// New wraps an upgraded connection. r may carry bytes buffered during the
// handshake; when nil, nc is read directly.
func New(nc net.Conn, r io.Reader, opts Options) *Conn {
	o := opts.withDefaults()
	if r == nil {
		r = nc
	}
	t := &Conn{
		nc:    nc,
		r:     r,
		opts:  o,
		log:   o.Logger,
		queue: framequeue.New(o.QueueLimit),
		w:     bufio.NewWriterSize(nc, o.MaxFrameSize+ws.MaxHeaderSize),
	}
	if o.SendBufferSize > 0 {
		if err := setSendBuffer(nc, o.SendBufferSize); err != nil {
			t.log.Warn("set send buffer", zap.Int("size", o.SendBufferSize), zap.Error(err))
		}
	}
	return t
}

// Upgrade performs the HTTP upgrade handshake and returns the transport.
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options) (*Conn, error) {
	nc, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, err, "upgrade").
			WithContext("path", r.URL.Path)
	}
	var br io.Reader
	if rw != nil {
		br = rw.Reader
	}
	return New(nc, br, opts), nil
}

// RemoteAddr returns the peer address.
func (t *Conn) RemoteAddr() net.Addr {
	return t.nc.RemoteAddr()
}

// PeekFrame implements api.FrameSource.
func (t *Conn) PeekFrame() (api.Frame, error) {
	return t.queue.Peek()
}

// DequeueFrame implements api.FrameSource.
func (t *Conn) DequeueFrame() (api.Frame, error) {
	return t.queue.Dequeue()
}

// Close flushes buffered output, closes the socket and the frame queue.
// A write blocked on a stalled peer is aborted first. It is safe to call
// more than once.
func (t *Conn) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.queue.Close()

		_ = t.nc.SetWriteDeadline(time.Now())
		t.writeMu.Lock()
		_ = t.nc.SetWriteDeadline(time.Now().Add(closeFlushTimeout))
		if ferr := t.w.Flush(); ferr != nil {
			t.log.Debug("flush on close", zap.Error(ferr))
		}
		t.writeMu.Unlock()

		err = t.nc.Close()
	})
	return err
}

// Closed reports whether Close was called.
func (t *Conn) Closed() bool {
	return t.closed.Load()
}

var _ api.Transport = (*Conn)(nil)
