package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayush/thunder-dashboard/backend/internal/realtime"
)

// Watch streams the live item list of a subject. Every frame is passed to
// onFrame; commands sent on cmds are forwarded to the server. Watch returns
// when ctx is cancelled or the connection drops.
func (c *Client) Watch(ctx context.Context, subjectID string, cmds <-chan realtime.Command, onFrame func(realtime.Frame)) error {
	u := *c.base
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimRight(u.Path, "/") + "/api/subjects/" + url.PathEscape(subjectID) + "/ws"

	dialer := websocket.Dialer{Jar: c.jar, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	defer conn.Close()

	frames := make(chan realtime.Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var f realtime.Frame
			if err := conn.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		case f := <-frames:
			onFrame(f)
		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if err := conn.WriteJSON(cmd); err != nil {
				return fmt.Errorf("send %s: %w", cmd.Type, err)
			}
		}
	}
}
