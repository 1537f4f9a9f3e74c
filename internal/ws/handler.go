package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/internal/hub"
	"github.com/skeesen8/blackjack/internal/lobby"
	"github.com/skeesen8/blackjack/internal/protocol"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/pkg/types"
)

const (
	DefaultSendTimeout = 3 * time.Second
	DefaultOutboxSize  = 16

	maxTableIDLen = 64
)

type Deps struct {
	Hub      *hub.Hub
	Registry *registry.Registry
	Adapter  *protocol.Adapter
	Log      *zap.Logger

	SendTimeout    time.Duration
	OutboxSize     int
	OriginPatterns []string // empty means same-origin only
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.SendTimeout <= 0 {
		d.SendTimeout = DefaultSendTimeout
	}
	if d.OutboxSize <= 0 {
		d.OutboxSize = DefaultOutboxSize
	}
}

func tableID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "tableID")
	if id == "" || len(id) > maxTableIDLen {
		http.Error(w, "invalid table id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// Handler serves the table socket. The table is created on first use.
func Handler(d Deps) http.HandlerFunc {
	d.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tableID(w, r)
		if !ok {
			return
		}

		lb, err := d.Hub.Ensure(r.Context(), id)
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}

		wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: d.OriginPatterns})
		if err != nil {
			return
		}
		c := newConn(wsc, d.OutboxSize, d.SendTimeout, d.Log.With(zap.String("table_id", id)))
		c.log.Debug("table socket opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go c.writeLoop(ctx)

		defer func() {
			// The lobby may already be gone; the registry entry then goes
			// with the table.
			dctx, dcancel := context.WithTimeout(context.Background(), time.Second)
			lb.Send(dctx, lobby.Disconnected{Conn: c})
			dcancel()
			c.shutdown(websocket.StatusNormalClosure, "")
			<-c.writerDone
			c.log.Debug("table socket closed")
		}()

		if !lb.Send(ctx, lobby.Attach{Conn: c}) {
			c.shutdown(websocket.StatusGoingAway, "table closed")
			return
		}

		for msg, err := range envelopes(ctx, wsc) {
			if err != nil {
				d.Adapter.Reject(c, err)
				if fatal(err) {
					c.shutdown(websocket.StatusPolicyViolation, err.Error())
					return
				}
				continue
			}
			if !lb.Send(ctx, lobby.Inbound{From: c, Msg: msg}) {
				c.shutdown(websocket.StatusGoingAway, "table closed")
				return
			}
		}
	}
}

// ChatHandler serves the side chat socket of an existing table. Only
// chat_message envelopes are accepted; they never touch the table actor.
func ChatHandler(d Deps) http.HandlerFunc {
	d.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := tableID(w, r)
		if !ok {
			return
		}

		lb, err := d.Hub.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if lb == nil {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}

		wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: d.OriginPatterns})
		if err != nil {
			return
		}
		c := newConn(wsc, d.OutboxSize, d.SendTimeout, d.Log.With(zap.String("table_id", id)))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go c.writeLoop(ctx)

		d.Registry.RegisterChat(id, c)
		defer func() {
			d.Registry.DeregisterChat(id, c)
			c.shutdown(websocket.StatusNormalClosure, "")
			<-c.writerDone
		}()

		for msg, err := range envelopes(ctx, wsc) {
			if err == nil && msg.Type != types.MsgChatMessage {
				err = fmt.Errorf("unknown message type: %s", msg.Type)
			}
			if err == nil {
				err = d.Adapter.Chat(id, msg)
			}
			if err != nil {
				d.Adapter.Reject(c, err)
				if fatal(err) {
					c.shutdown(websocket.StatusPolicyViolation, err.Error())
					return
				}
			}
		}
	}
}
