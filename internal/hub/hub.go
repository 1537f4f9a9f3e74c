package hub

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/lobby"
)

var ErrStopped = errors.New("hub: stopped")

type HubMsg interface{ isHubMsg() }

type CreateTable struct {
	Name  string
	Rules engine.Rules
	Reply chan *lobby.Lobby
}

type GetTable struct {
	ID    string
	Reply chan *lobby.Lobby
}

// EnsureTable returns the table with ID, creating it under that ID if it does
// not exist yet.
type EnsureTable struct {
	ID    string
	Name  string // only used if creation happens
	Reply chan *lobby.Lobby
}

type RemoveTable struct {
	ID    string
	Reply chan bool
}

type ListTables struct {
	Reply chan []*lobby.Lobby
}

type ShutdownHub struct {
	Done chan struct{}
}

func (CreateTable) isHubMsg() {}
func (GetTable) isHubMsg()    {}
func (EnsureTable) isHubMsg() {}
func (RemoveTable) isHubMsg() {}
func (ListTables) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Config struct {
	Rules engine.Rules // defaults for tables created without their own
	Lobby lobby.Deps
}

// Hub owns the id -> lobby map. It is the only goroutine that touches it.
type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateTable:
				msg.Reply <- h.create("", msg.Name, msg.Rules)

			case GetTable:
				msg.Reply <- h.lobbies[msg.ID] // May be nil

			case EnsureTable:
				if lb := h.lobbies[msg.ID]; lb != nil {
					msg.Reply <- lb
					break
				}
				name := msg.Name
				if name == "" {
					name = "Table " + msg.ID
				}
				msg.Reply <- h.create(msg.ID, name, engine.Rules{})

			case RemoveTable:
				lb, ok := h.lobbies[msg.ID]
				if ok {
					delete(h.lobbies, msg.ID)
					stopLobby(lb)
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}

			case ListTables:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				slices.SortFunc(out, func(a, b *lobby.Lobby) int {
					return strings.Compare(a.ID(), b.ID())
				})
				msg.Reply <- out

			case ShutdownHub:
				h.shutdown()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

func (h *Hub) create(id, name string, rules engine.Rules) *lobby.Lobby {
	if rules == (engine.Rules{}) {
		rules = h.cfg.Rules
	}
	var opts []engine.Option
	if id != "" {
		opts = append(opts, engine.WithID(id))
	}
	t := engine.NewTable(name, rules, opts...)
	lb := lobby.NewLobby(h.ctx, t, h.cfg.Lobby)
	h.lobbies[t.ID] = lb
	return lb
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		stopLobby(lb)
	}
	clear(h.lobbies)
	h.cancel()
}

// stopLobby waits for the lobby to acknowledge so its timer is stopped
// before the caller moves on.
func stopLobby(lb *lobby.Lobby) {
	done := make(chan struct{})
	select {
	case lb.Inbox() <- lobby.Shutdown{Done: done}:
		<-done
	case <-lb.Done():
	}
}

// request posts m and waits for the hub to take it.
func (h *Hub) request(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, h *Hub, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) Create(ctx context.Context, name string, rules engine.Rules) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.request(ctx, CreateTable{Name: name, Rules: rules, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// Get returns nil when no table has that id.
func (h *Hub) Get(ctx context.Context, id string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.request(ctx, GetTable{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

func (h *Hub) Ensure(ctx context.Context, id string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.request(ctx, EnsureTable{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

func (h *Hub) Remove(ctx context.Context, id string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.request(ctx, RemoveTable{ID: id, Reply: reply}); err != nil {
		return false, err
	}
	return await(ctx, h, reply)
}

// List returns every table ordered by id.
func (h *Hub) List(ctx context.Context) ([]*lobby.Lobby, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.request(ctx, ListTables{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, h, reply)
}

// Shutdown stops every lobby and then the hub itself.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if err := h.request(ctx, ShutdownHub{Done: done}); err != nil {
		if errors.Is(err, ErrStopped) {
			return nil
		}
		return err
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
