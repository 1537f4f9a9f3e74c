package lobby

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/history"
	"github.com/skeesen8/blackjack/internal/protocol"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/pkg/types"
)

const DefaultNewRoundDelay = 5 * time.Second

type Msg interface{ isLobbyMsg() }

// Inbound is one client envelope, from a table socket or the REST command
// endpoint. Done, if set, is closed once the envelope has been handled.
type Inbound struct {
	From registry.Conn
	Msg  types.ClientMessage
	Done chan struct{}
}

func (Inbound) isLobbyMsg() {}

// Attach registers a new table socket; it is sent the current table view.
type Attach struct{ Conn registry.Conn }

func (Attach) isLobbyMsg() {}

// Disconnected reports a table socket that went away.
type Disconnected struct{ Conn registry.Conn }

func (Disconnected) isLobbyMsg() {}

type Shutdown struct{ Done chan struct{} }

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// autoNewRound is posted by the new-round timer. Only the current generation
// is honored.
type autoNewRound struct{ gen int }

func (autoNewRound) isLobbyMsg() {}

type View struct {
	Table      types.TableState
	NumConns   int
	TimerArmed bool
}

type Deps struct {
	Registry      *registry.Registry
	Adapter       *protocol.Adapter
	Recorder      history.Recorder
	Log           *zap.Logger
	NewRoundDelay time.Duration
}

// Lobby owns one table. Every mutation of that table runs on the lobby's
// goroutine, in inbox order.
type Lobby struct {
	inbox chan Msg
	table *engine.Table

	reg      *registry.Registry
	adapter  *protocol.Adapter
	recorder history.Recorder
	log      *zap.Logger
	tracer   trace.Tracer

	delay time.Duration
	timer *time.Timer
	gen   int

	summary atomic.Pointer[types.TableSummary]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLobby(parent context.Context, t *engine.Table, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = registry.New(deps.Log)
	}
	if deps.Adapter == nil {
		deps.Adapter = protocol.New(deps.Registry, deps.Log)
	}
	if deps.Recorder == nil {
		deps.Recorder = history.Nop{}
	}
	if deps.NewRoundDelay <= 0 {
		deps.NewRoundDelay = DefaultNewRoundDelay
	}

	l := &Lobby{
		inbox:    make(chan Msg, 64),
		table:    t,
		reg:      deps.Registry,
		adapter:  deps.Adapter,
		recorder: deps.Recorder,
		log:      deps.Log.With(zap.String("table_id", t.ID)),
		tracer:   otel.Tracer("github.com/skeesen8/blackjack/internal/lobby"),
		delay:    deps.NewRoundDelay,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	l.publish()

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Inbound:
				l.handle(msg)

			case Attach:
				l.adapter.Attach(l.table, msg.Conn)

			case Disconnected:
				l.after(l.ctx, l.adapter.Disconnect(l.table, msg.Conn))

			case autoNewRound:
				if msg.gen != l.gen {
					break // stale fire from a timer we already replaced or stopped
				}
				l.timer = nil
				l.after(l.ctx, l.adapter.AutoNewRound(l.table))

			case GetState:
				conns, _ := l.reg.Counts(l.table.ID)
				msg.Reply <- View{
					Table:      protocol.Render(l.table),
					NumConns:   conns,
					TimerArmed: l.timer != nil,
				}

			case Shutdown:
				l.shutdown()
				if msg.Done != nil {
					close(msg.Done)
				}
				return
			}
		}
	}
}

func (l *Lobby) handle(in Inbound) {
	ctx, span := l.tracer.Start(l.ctx, "lobby."+in.Msg.Type, trace.WithAttributes(
		attribute.String("table.id", l.table.ID),
		attribute.String("player.id", in.Msg.PlayerID),
	))
	eff := l.adapter.Handle(l.table, in.From, in.Msg)
	span.SetAttributes(
		attribute.Bool("applied", eff.Applied),
		attribute.String("table.phase", string(l.table.Phase)),
	)
	l.after(ctx, eff)
	span.End()

	if in.Done != nil {
		close(in.Done)
	}
}

// after reacts to what the adapter did: settled rounds are recorded and arm
// the new-round timer, and anything that takes the table out of FINISHED
// disarms it.
func (l *Lobby) after(ctx context.Context, eff protocol.Effect) {
	if !eff.Applied {
		return
	}
	l.publish()

	switch {
	case eff.RoundFinished:
		l.record(ctx)
		l.armNewRound()
	case eff.TableEmpty, l.table.Phase != engine.PhaseFinished:
		l.stopTimer()
	}
}

func (l *Lobby) record(ctx context.Context) {
	r := history.Round{
		TableID:    l.table.ID,
		Round:      l.table.Round,
		FinishedAt: time.Now().UTC(),
		DealerHand: protocol.RenderHand(&l.table.Dealer.Hand),
		Results:    protocol.RenderResults(l.table.LastResults),
	}
	if err := l.recorder.Record(ctx, r); err != nil {
		l.log.Warn("record round", zap.Int("round", r.Round), zap.Error(err))
	}
}

func (l *Lobby) armNewRound() {
	l.stopTimer()
	gen := l.gen
	l.timer = time.AfterFunc(l.delay, func() {
		select {
		case l.inbox <- autoNewRound{gen: gen}:
		case <-l.done:
		}
	})
}

// stopTimer disarms the new-round timer. Bumping the generation also
// invalidates a fire that is already waiting in the inbox.
func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
}

func (l *Lobby) shutdown() {
	l.stopTimer()
	for _, c := range l.reg.DropTable(l.table.ID) {
		c.Close()
	}
	l.cancel()
}

func (l *Lobby) publish() {
	s := protocol.Summarize(l.table)
	l.summary.Store(&s)
}

func (l *Lobby) ID() string { return l.table.ID }

// Summary is the directory row as of the last applied change. Safe to call
// from any goroutine.
func (l *Lobby) Summary() types.TableSummary { return *l.summary.Load() }

// Send posts m to the lobby unless it has stopped or ctx ends first.
func (l *Lobby) Send(ctx context.Context, m Msg) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Done is closed when the lobby goroutine exits.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Expose the inbox so tests or the transport can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }
