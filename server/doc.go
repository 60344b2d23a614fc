// Package server
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP front end of the message engine. Each request path names an action;
// the request is upgraded to WebSocket, the action installs its strategy on
// a fresh session.Conn and the transport read loop drives the connection
// until it closes. GET <prefix>/debug/state returns the debug probes as JSON.
package server
