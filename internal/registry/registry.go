package registry

import (
	"sync"

	"go.uber.org/zap"
)

// Conn is one live client socket as the registry sees it. Send must not block
// for long; an error means the connection is gone or too slow and it will be
// evicted.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close()
}

type seat struct {
	tableID  string
	playerID string
}

// Registry tracks which connections watch which table, which connections are
// on a table's chat channel, and which connection speaks for which player.
// One Registry is shared by every table.
type Registry struct {
	mu sync.Mutex

	tables   map[string]map[string]Conn // table id -> conn id -> conn
	chats    map[string]map[string]Conn
	byPlayer map[seat]Conn
	byConn   map[string]seat

	log *zap.Logger
}

func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		tables:   make(map[string]map[string]Conn),
		chats:    make(map[string]map[string]Conn),
		byPlayer: make(map[seat]Conn),
		byConn:   make(map[string]seat),
		log:      log,
	}
}

func (r *Registry) Register(tableID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	add(r.tables, tableID, c)
}

// Deregister removes c from the table and returns the player it was bound
// to, if any.
func (r *Registry) Deregister(tableID string, c Conn) (playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remove(r.tables, tableID, c.ID())
	if s, ok := r.byConn[c.ID()]; ok && s.tableID == tableID {
		delete(r.byConn, c.ID())
		if r.byPlayer[s] != nil && r.byPlayer[s].ID() == c.ID() {
			delete(r.byPlayer, s)
		}
		return s.playerID
	}
	return ""
}

func (r *Registry) Registered(tableID string, c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tables[tableID][c.ID()]
	return ok
}

func (r *Registry) RegisterChat(tableID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	add(r.chats, tableID, c)
}

func (r *Registry) DeregisterChat(tableID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remove(r.chats, tableID, c.ID())
}

// BindPlayer makes c the connection for playerID. A newer connection for the
// same player replaces the older binding.
func (r *Registry) BindPlayer(tableID, playerID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := seat{tableID: tableID, playerID: playerID}
	if old, ok := r.byPlayer[s]; ok && old.ID() != c.ID() {
		delete(r.byConn, old.ID())
	}
	if prev, ok := r.byConn[c.ID()]; ok && prev != s {
		delete(r.byPlayer, prev)
	}
	r.byPlayer[s] = c
	r.byConn[c.ID()] = s
}

func (r *Registry) UnbindPlayer(tableID, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := seat{tableID: tableID, playerID: playerID}
	if c, ok := r.byPlayer[s]; ok {
		delete(r.byConn, c.ID())
		delete(r.byPlayer, s)
	}
}

// SendToPlayer delivers msg to the player's connection if one is bound. A
// failed send evicts the connection and reports false.
func (r *Registry) SendToPlayer(tableID, playerID string, msg []byte) bool {
	r.mu.Lock()
	c, ok := r.byPlayer[seat{tableID: tableID, playerID: playerID}]
	r.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.Send(msg); err != nil {
		r.evict(c, err)
		return false
	}
	return true
}

// Broadcast sends msg to every connection on the table. Connections that fail
// are evicted and delivery continues; the players they were bound to are
// returned so the caller can mark them disconnected.
func (r *Registry) Broadcast(tableID string, msg []byte) (evicted []string) {
	for _, c := range r.snapshot(r.tables, tableID) {
		if err := c.Send(msg); err != nil {
			if s, ok := r.evict(c, err); ok {
				evicted = append(evicted, s.playerID)
			}
		}
	}
	return evicted
}

func (r *Registry) BroadcastChat(tableID string, msg []byte) {
	for _, c := range r.snapshot(r.chats, tableID) {
		if err := c.Send(msg); err != nil {
			r.evict(c, err)
		}
	}
}

// Counts reports the number of table and chat connections for a table.
func (r *Registry) Counts(tableID string) (conns, chat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tables[tableID]), len(r.chats[tableID])
}

// DropTable forgets every table and chat connection of tableID and returns
// them so the caller can close them.
func (r *Registry) DropTable(tableID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Conn
	for _, sets := range []map[string]map[string]Conn{r.tables, r.chats} {
		for _, c := range sets[tableID] {
			out = append(out, c)
		}
		delete(sets, tableID)
	}
	for s, c := range r.byPlayer {
		if s.tableID == tableID {
			delete(r.byConn, c.ID())
			delete(r.byPlayer, s)
		}
	}
	return out
}

func (r *Registry) snapshot(sets map[string]map[string]Conn, tableID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(sets[tableID]))
	for _, c := range sets[tableID] {
		out = append(out, c)
	}
	return out
}

// evict drops c from every set and map it belongs to and closes it.
func (r *Registry) evict(c Conn, cause error) (seat, bool) {
	r.mu.Lock()
	id := c.ID()
	for tableID := range r.tables {
		remove(r.tables, tableID, id)
	}
	for tableID := range r.chats {
		remove(r.chats, tableID, id)
	}
	s, bound := r.byConn[id]
	if bound {
		delete(r.byConn, id)
		delete(r.byPlayer, s)
	}
	r.mu.Unlock()

	r.log.Warn("evicting connection",
		zap.String("conn_id", id),
		zap.String("player_id", s.playerID),
		zap.Error(cause),
	)
	c.Close()
	return s, bound
}

func add(sets map[string]map[string]Conn, tableID string, c Conn) {
	set, ok := sets[tableID]
	if !ok {
		set = make(map[string]Conn)
		sets[tableID] = set
	}
	set[c.ID()] = c
}

func remove(sets map[string]map[string]Conn, tableID, connID string) {
	set, ok := sets[tableID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(sets, tableID)
	}
}
