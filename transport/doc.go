// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket frame transport over net.Conn built on github.com/gobwas/ws.
//
// The read loop parses and unmasks inbound frames, answers pings, queues
// data and close frames and raises events on a Notifier. The write side
// emits single messages (split into frames of at most MaxFrameSize bytes),
// explicit continuation sequences flagged with api.SendMore, and close
// frames. Frames flagged with api.SendBuffer stay in the write buffer until
// a later unflagged send or close.
package transport
