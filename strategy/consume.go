// File: strategy/consume.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package strategy

import (
	"errors"

	"github.com/momentics/hioload-wsmsg/api"
	"github.com/momentics/hioload-wsmsg/message"
	"github.com/momentics/hioload-wsmsg/session"
)

// next pulls one data frame from c. ok is false when nothing consumable is
// queued; control frames are left for the notifier.
func next(c *session.Conn) (res message.Result, ok bool, err error) {
	res, err = c.Next()
	switch {
	case err == nil:
		return res, true, nil
	case errors.Is(err, api.ErrQueueEmpty), errors.Is(err, api.ErrControlFrame):
		return message.Result{}, false, nil
	default:
		return message.Result{}, false, err
	}
}
