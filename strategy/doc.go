// Package strategy
// Author: momentics <momentics@gmail.com>
//
// Response strategies installed on a session.Conn and the action registry
// that maps request names to them.
//
//	basic-construct, basic-open, basic-send  DiscardAck
//	basic-echo                               Echo
//	basic-ssl, basic-len                     LengthReport
//	basic-empty                              EmptySend
//	basic-big                                BulkSend
//	basic-frames                             FramesSend
//
// Each action disables auto-finalization so the strategy decides when the
// response is complete.
package strategy
