package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/lobby"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, Config{Rules: engine.DefaultRules()})
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := newTestHub(t)
	reply := make(chan *lobby.Lobby, 1)

	h.Inbox() <- CreateTable{Name: "High Rollers", Reply: reply}
	lb1 := <-reply

	h.Inbox() <- GetTable{ID: lb1.ID(), Reply: reply}
	lb2 := <-reply

	if lb1 == nil || lb2 == nil || lb1 != lb2 {
		t.Fatalf("expected same lobby pointer")
	}
	if s := lb1.Summary(); s.Name != "High Rollers" || s.MaxPlayers != 6 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestHub_Create_KeepsCustomRules(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	rules := engine.DefaultRules()
	rules.MaxPlayers = 2
	rules.MinBet = 25
	lb, err := h.Create(ctx, "small", rules)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s := lb.Summary(); s.MaxPlayers != 2 || s.MinBet != 25 {
		t.Fatalf("custom rules not applied: %+v", s)
	}
}

func TestHub_Get_Missing(t *testing.T) {
	h := newTestHub(t)
	lb, err := h.Get(context.Background(), "nope")
	if err != nil || lb != nil {
		t.Fatalf("want nil lobby, got %v %v", lb, err)
	}
}

func TestHub_Ensure_CreatesUnderIDOnce(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	lb1, err := h.Ensure(ctx, "vip")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if lb1.ID() != "vip" || lb1.Summary().Name != "Table vip" {
		t.Fatalf("unexpected table %s %+v", lb1.ID(), lb1.Summary())
	}

	lb2, _ := h.Ensure(ctx, "vip")
	if lb1 != lb2 {
		t.Fatalf("second ensure should return the existing table")
	}
}

func TestHub_List_Sorted(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := h.Ensure(ctx, id); err != nil {
			t.Fatalf("ensure %s: %v", id, err)
		}
	}

	all, err := h.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, lb := range all {
		ids = append(ids, lb.ID())
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("want [a b c], got %v", ids)
	}
}

func TestHub_Remove_StopsLobby(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	lb, _ := h.Ensure(ctx, "gone")
	ok, err := h.Remove(ctx, "gone")
	if err != nil || !ok {
		t.Fatalf("remove: %v %v", ok, err)
	}
	select {
	case <-lb.Done():
	case <-time.After(time.Second):
		t.Fatalf("lobby still running after remove")
	}

	if got, _ := h.Get(ctx, "gone"); got != nil {
		t.Fatalf("removed table still listed")
	}
	if ok, _ := h.Remove(ctx, "gone"); ok {
		t.Fatalf("second remove should report false")
	}
}

func TestHub_Shutdown_StopsEverything(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	a, _ := h.Ensure(ctx, "a")
	b, _ := h.Ensure(ctx, "b")

	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for _, lb := range []*lobby.Lobby{a, b} {
		select {
		case <-lb.Done():
		case <-time.After(time.Second):
			t.Fatalf("lobby %s still running", lb.ID())
		}
	}

	if _, err := h.Get(ctx, "a"); !errors.Is(err, ErrStopped) {
		t.Fatalf("want ErrStopped after shutdown, got %v", err)
	}
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown should be a no-op, got %v", err)
	}
}
