package strategy_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/fake"
	"github.com/momentics/hioload-wsmsg/session"
	"github.com/momentics/hioload-wsmsg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, name string) (*fake.Transport, *session.Conn) {
	t.Helper()
	tr := fake.NewTransport()
	c := session.NewConn(tr)
	action, ok := strategy.NewActions(strategy.DefaultOptions())[name]
	require.True(t, ok, name)
	require.NoError(t, action(context.Background(), c))
	return tr, c
}

func deliver(t *testing.T, tr *fake.Transport, c *session.Conn, frames ...api.Frame) {
	t.Helper()
	for _, f := range frames {
		require.NoError(t, tr.Push(f))
		require.NoError(t, c.Notify(context.Background(), session.Event{Type: session.EventReadable}))
	}
}

func TestActionNames(t *testing.T) {
	names := strategy.Names(strategy.NewActions(strategy.Options{}))
	assert.Equal(t, []string{
		"basic-big", "basic-construct", "basic-echo", "basic-empty",
		"basic-frames", "basic-len", "basic-open", "basic-send", "basic-ssl",
	}, names)
}

func TestDiscardAck(t *testing.T) {
	tr, c := setup(t, "basic-send")
	assert.False(t, c.AutoFinalize())

	deliver(t, tr, c,
		api.Frame{Type: api.MessageText, Payload: []byte("abc"), Last: false},
		api.Frame{Type: api.MessageText, Payload: []byte("def"), Last: true},
	)
	assert.Empty(t, tr.Sent())
	assert.Empty(t, tr.Closes())
	assert.Equal(t, session.StateOpen, c.State())
	assert.Equal(t, 0, tr.Queued())
}

func TestLengthReport(t *testing.T) {
	tr, c := setup(t, "basic-len")

	deliver(t, tr, c, api.Frame{Type: api.MessageText, Payload: []byte("hello world"), Last: true})

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, api.MessageText, sent[0].Type)
	assert.Equal(t, "{type: 1, last: 1, length: 11, data: \"hello worl\"}\n", string(sent[0].Payload))
}

func TestLengthReportFragmented(t *testing.T) {
	tr, c := setup(t, "basic-ssl")

	deliver(t, tr, c,
		api.Frame{Type: api.MessageBinary, Payload: []byte("12345"), Last: false},
		api.Frame{Type: api.MessageBinary, Payload: []byte("67890"), Last: false},
	)
	assert.Empty(t, tr.Sent(), "partial messages are not reported")

	deliver(t, tr, c, api.Frame{Type: api.MessageBinary, Last: true})
	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "{type: 2, last: 1, length: 10, data: \"1234567890\"}\n", string(sent[0].Payload))
}

func TestReportString(t *testing.T) {
	r := strategy.Report{Type: api.MessageText, Length: 0}
	assert.Equal(t, "{type: 1, last: 0, length: 0, data: \"\"}\n", r.String())
}

func TestEcho(t *testing.T) {
	tr, c := setup(t, "basic-echo")

	deliver(t, tr, c,
		api.Frame{Type: api.MessageBinary, Payload: []byte{0x00, 0xff}, Last: false},
		api.Frame{Type: api.MessageBinary, Payload: []byte{0x10}, Last: true},
		api.Frame{Type: api.MessageText, Payload: []byte("second"), Last: true},
	)

	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, fake.SentMessage{Type: api.MessageBinary, Payload: []byte{0x00, 0xff, 0x10}}, sent[0])
	assert.Equal(t, fake.SentMessage{Type: api.MessageText, Payload: []byte("second")}, sent[1])
}

func TestEchoEmptyThenOrderlyClose(t *testing.T) {
	tr, c := setup(t, "basic-echo")

	deliver(t, tr, c, api.Frame{Type: api.MessageText, Last: true})
	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, api.MessageText, sent[0].Type)
	assert.Empty(t, sent[0].Payload)

	require.NoError(t, tr.PushClose(api.CloseNormalClosure, ""))
	require.NoError(t, c.Notify(context.Background(), session.Event{Type: session.EventReadable}))
	assert.True(t, c.OrderlyClosed())
	assert.Equal(t, []fake.CloseCall{{Code: api.CloseNormalClosure}}, tr.Closes())
}

func TestBulkSend(t *testing.T) {
	tr, c := setup(t, "basic-big")

	sent := tr.Sent()
	require.Len(t, sent, 1, "bulk output is one logical send")
	assert.Equal(t, api.SendFlags(0), sent[0].Flags)

	lines := bytes.Split(bytes.TrimSuffix(sent[0].Payload, []byte("\n")), []byte("\n"))
	require.Len(t, lines, strategy.DefaultBulkLines)
	assert.Equal(t, "       0:01234567890123456789012345678901234567890", string(lines[0]))
	assert.Equal(t, "    9999:01234567890123456789012345678901234567890", string(lines[9999]))

	assert.Equal(t, []fake.CloseCall{{Code: api.CloseNormalClosure, Reason: "OK"}}, tr.Closes())
	assert.Equal(t, session.StateClosing, c.State())
}

func TestBulkSendFailure(t *testing.T) {
	tr := fake.NewTransport()
	tr.SetSendError(errors.New("connection reset"))
	c := session.NewConn(tr)

	err := strategy.NewActions(strategy.DefaultOptions())["basic-big"](context.Background(), c)
	require.ErrorIs(t, err, api.ErrSendFailure)
	assert.Empty(t, tr.Closes(), "no close after a failed send")
	assert.Equal(t, session.StateError, c.State())

	record, err := c.ReportClose()
	require.NoError(t, err)
	assert.Equal(t, api.CloseInternalServerErr, record.StatusCode)
	assert.False(t, record.Orderly)
}

func TestFramesSend(t *testing.T) {
	tr, _ := setup(t, "basic-frames")

	sent := tr.Sent()
	require.Len(t, sent, strategy.DefaultFrameCount)
	more := 0
	for i, m := range sent {
		assert.Equal(t, fmt.Sprintf("%8d: Hello\n", i), string(m.Payload))
		assert.True(t, m.Flags.Has(api.SendBuffer))
		if m.Flags.Has(api.SendMore) {
			more++
		}
	}
	assert.Equal(t, strategy.DefaultFrameCount-1, more)
	assert.False(t, sent[len(sent)-1].Flags.Has(api.SendMore))
	assert.Equal(t, []fake.CloseCall{{Code: api.CloseNormalClosure, Reason: "OK"}}, tr.Closes())
}

func TestFramesSendAbortsOnFailure(t *testing.T) {
	tr := fake.NewTransport()
	tr.FailSendAfter(10, errors.New("broken pipe"))
	c := session.NewConn(tr)

	action := strategy.NewActions(strategy.Options{FrameCount: 50})["basic-frames"]
	require.ErrorIs(t, action(context.Background(), c), api.ErrSendFailure)
	assert.Len(t, tr.Sent(), 10)
	assert.Empty(t, tr.Closes())
	assert.Equal(t, session.StateError, c.State())
}

func TestEmptySend(t *testing.T) {
	tr, c := setup(t, "basic-empty")

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, api.MessageText, sent[0].Type)
	assert.Empty(t, sent[0].Payload)
	assert.Equal(t, []fake.CloseCall{{Code: api.CloseNormalClosure, Reason: "OK"}}, tr.Closes())

	require.NoError(t, tr.PushClose(api.CloseNormalClosure, "OK"))
	require.NoError(t, c.Notify(context.Background(), session.Event{Type: session.EventReadable}))
	record, err := c.ReportClose()
	require.NoError(t, err)
	assert.Equal(t, session.CloseRecord{StatusCode: api.CloseNormalClosure, Reason: "OK", Orderly: true}, record)
}

func TestCustomOptions(t *testing.T) {
	tr := fake.NewTransport()
	c := session.NewConn(tr)
	actions := strategy.NewActions(strategy.Options{PrefixLen: 3, BulkLines: 2})

	require.NoError(t, actions["basic-big"](context.Background(), c))
	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t,
		"       0:01234567890123456789012345678901234567890\n"+
			"       1:01234567890123456789012345678901234567890\n",
		string(sent[0].Payload))

	tr2 := fake.NewTransport()
	c2 := session.NewConn(tr2)
	require.NoError(t, actions["basic-len"](context.Background(), c2))
	deliver(t, tr2, c2, api.Frame{Type: api.MessageText, Payload: []byte("abcdef"), Last: true})
	assert.Equal(t, "{type: 1, last: 1, length: 6, data: \"abc\"}\n", string(tr2.Sent()[0].Payload))
}
