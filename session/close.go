// File: session/close.go
// Author: momentics <momentics@gmail.com>
//
// Close coordinator: local and remote halves of the close handshake and
// the terminal CloseRecord.

package session

import (
	"context"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-wsmsg/api"
	"go.uber.org/zap"
)

// SendClose starts the local half of the close handshake. Calling it again
// once a close is under way, or after the connection ended, is a no-op.
func (c *Conn) SendClose(ctx context.Context, code int, reason string) error {
	c.closeMu.Lock()
	if c.local != nil || c.State() != StateOpen {
		c.closeMu.Unlock()
		return nil
	}
	local := newCloseHalf(code, reason)
	c.local = local
	c.state.Store(int32(StateClosing))
	c.closeMu.Unlock()

	if err := local.write(ctx, c.transport); err != nil {
		return api.WrapError(api.ErrCodeSendFailure, err, "send close").
			WithContext("code", code)
	}
	return nil
}

// Abort drops the transport without a close handshake. Writes blocked on
// the peer fail and the read loop ends; the connection is left without a
// close record unless one was already set.
func (c *Conn) Abort() error {
	c.log.Debug("websocket abort", zap.String("state", c.State().String()))
	return c.transport.Close()
}

// ReportClose returns the terminal close record, or api.ErrNotYetClosed
// before the connection has ended.
func (c *Conn) ReportClose() (CloseRecord, error) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.record == nil {
		return CloseRecord{}, api.ErrNotYetClosed
	}
	return *c.record, nil
}

// OrderlyClosed reports whether the close handshake completed in both
// directions.
func (c *Conn) OrderlyClosed() bool {
	rec, err := c.ReportClose()
	return err == nil && rec.Orderly
}

// CloseReason returns the textual close reason, empty before close.
func (c *Conn) CloseReason() string {
	rec, _ := c.ReportClose()
	return rec.Reason
}

// onRemoteClose handles a close frame from the peer. Without a prior local
// close the frame is answered with a matching close.
func (c *Conn) onRemoteClose(ctx context.Context, payload []byte) error {
	code, reason := parseClosePayload(payload)

	c.closeMu.Lock()
	if c.State().Terminal() {
		c.closeMu.Unlock()
		return nil
	}
	reply := c.local == nil
	if reply {
		c.local = newCloseHalf(replyCode(code), reason)
		c.state.Store(int32(StateClosing))
	}
	local := c.local
	c.closeMu.Unlock()

	var orderly bool
	if reply {
		if err := local.write(ctx, c.transport); err != nil {
			c.log.Debug("close reply failed", zap.Error(err))
		} else {
			orderly = true
		}
	} else {
		// Only orderly if our own close frame actually went out.
		orderly = local.wait(ctx)
	}

	rec := CloseRecord{StatusCode: code, Reason: reason, Orderly: orderly}
	if code == api.CloseNoStatusRcvd && !reply {
		// The peer acknowledged without a body; report what we sent.
		rec.StatusCode, rec.Reason = local.code, local.reason
	}
	return c.finish(ctx, rec)
}

// finish records rec, moves the connection to Closed and delivers
// EventAppClose to the strategy.
func (c *Conn) finish(ctx context.Context, rec CloseRecord) error {
	c.closeMu.Lock()
	if c.State().Terminal() {
		c.closeMu.Unlock()
		return nil
	}
	c.record = &rec
	c.state.Store(int32(StateClosed))
	c.closeMu.Unlock()

	c.log.Debug("websocket close event",
		zap.Int("status", rec.StatusCode),
		zap.Bool("orderly", rec.Orderly),
		zap.String("reason", rec.Reason),
	)

	var err error
	if slot := c.strategy.Load(); slot != nil {
		err = slot.s.OnEvent(ctx, c, Event{
			Type:    EventAppClose,
			Status:  rec.StatusCode,
			Reason:  rec.Reason,
			Orderly: rec.Orderly,
		})
	}
	c.reasm.Reset()
	close(c.done)
	if cerr := c.transport.Close(); cerr != nil {
		c.log.Debug("transport close", zap.Error(cerr))
	}
	return err
}

func parseClosePayload(p []byte) (int, string) {
	code, reason := ws.ParseCloseFrameData(p)
	if code == 0 {
		return api.CloseNoStatusRcvd, reason
	}
	return int(code), reason
}

// replyCode picks the status echoed back to a peer-initiated close.
func replyCode(code int) int {
	switch code {
	case api.CloseNoStatusRcvd, api.CloseAbnormalClosure:
		return api.CloseNormalClosure
	default:
		return code
	}
}
