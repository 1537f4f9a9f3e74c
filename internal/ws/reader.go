package ws

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"time"

	"github.com/coder/websocket"

	"github.com/skeesen8/blackjack/pkg/types"
)

const (
	maxFrameBytes      = 16 << 10
	maxFramesPerSecond = 40
	maxDecodeErrors    = 3
)

var (
	errMalformed        = errors.New("invalid message format")
	errRateLimited      = errors.New("rate limit exceeded")
	errTooManyMalformed = errors.New("too many invalid messages")
)

// fatal reports whether err ends the connection.
func fatal(err error) bool {
	return errors.Is(err, errRateLimited) || errors.Is(err, errTooManyMalformed)
}

// envelopes reads client envelopes off c until the socket fails. A frame that
// does not decode yields errMalformed. The sequence stops after yielding
// errRateLimited or errTooManyMalformed.
func envelopes(ctx context.Context, c *websocket.Conn) iter.Seq2[types.ClientMessage, error] {
	return func(yield func(types.ClientMessage, error) bool) {
		c.SetReadLimit(maxFrameBytes)

		windowStart := time.Now()
		frames, decodeErrs := 0, 0
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}

			now := time.Now()
			if now.Sub(windowStart) >= time.Second {
				windowStart = now
				frames = 0
			}
			frames++
			if frames > maxFramesPerSecond {
				yield(types.ClientMessage{}, errRateLimited)
				return
			}

			var msg types.ClientMessage
			if typ != websocket.MessageText || json.Unmarshal(data, &msg) != nil {
				decodeErrs++
				if decodeErrs >= maxDecodeErrors {
					yield(types.ClientMessage{}, errTooManyMalformed)
					return
				}
				if !yield(types.ClientMessage{}, errMalformed) {
					return
				}
				continue
			}
			decodeErrs = 0

			if !yield(msg, nil) {
				return
			}
		}
	}
}
