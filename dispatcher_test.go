package kovi

import (
	"context"
	"testing"
	"time"
)

func TestBotIdentityIsAdmin(t *testing.T) {
	id := &botIdentity{MainAdmin: 1, Admins: []int64{2, 3}}
	for _, uid := range []int64{1, 2, 3} {
		if !id.isAdmin(uid) {
			t.Fatalf("expected %d to be an admin", uid)
		}
	}
	if id.isAdmin(4) {
		t.Fatal("expected 4 to not be an admin")
	}
}

func TestMatchesKind(t *testing.T) {
	identity := &botIdentity{MainAdmin: 1}
	groupID := int64(10)

	privateEv := &MsgEvent{UserID: 1}
	groupEv := &MsgEvent{UserID: 1, GroupID: &groupID}
	nonAdminEv := &MsgEvent{UserID: 99}

	cases := []struct {
		name string
		kind MsgListenKind
		ev   *MsgEvent
		want bool
	}{
		{"any always matches private", AnyMsg, privateEv, true},
		{"any always matches group", AnyMsg, groupEv, true},
		{"private matches private", PrivateMsg, privateEv, true},
		{"private rejects group", PrivateMsg, groupEv, false},
		{"group matches group", GroupMsg, groupEv, true},
		{"group rejects private", GroupMsg, privateEv, false},
		{"admin matches admin sender", AdminMsg, privateEv, true},
		{"admin rejects non-admin sender", AdminMsg, nonAdminEv, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchesKind(tc.kind, tc.ev, identity); got != tc.want {
				t.Fatalf("matchesKind(%v) = %v, want %v", tc.kind, got, tc.want)
			}
		})
	}
}

// TestDispatchMsgSentUsesDistinctListenerTable guards against message_sent
// frames cross-firing plain OnMsg handlers (or vice versa): OnMsgSent
// handlers must only run for sent=true, and OnMsg handlers only for
// sent=false, even though both dispatch the exact same *MsgEvent type.
func TestDispatchMsgSentUsesDistinctListenerTable(t *testing.T) {
	tm := newTaskManager(testLogger())
	registry := newPluginRegistry(tm)
	d := newDispatcher(registry, tm, testLogger(), &botIdentity{})

	p := newPlugin("p", "1.0", nil)
	rb := newRuntimeBot("p", make(chan apiRequest, 4), newCorrelator(testLogger()), registry, testLogger(), tm, p)
	p.rb = rb
	if err := registry.mount(p); err != nil {
		t.Fatalf("mount: %v", err)
	}

	msgFired := make(chan struct{}, 1)
	sentFired := make(chan struct{}, 1)
	rb.OnMsg(func(ctx context.Context, ev *MsgEvent) { msgFired <- struct{}{} })
	rb.OnMsgSent(func(ctx context.Context, ev *MsgEvent) { sentFired <- struct{}{} })

	rbFor := func(string) *RuntimeBot { return rb }
	ev := &MsgEvent{UserID: 1}

	d.dispatchMsg(context.Background(), ev, rbFor, true)
	select {
	case <-sentFired:
	case <-time.After(time.Second):
		t.Fatal("expected OnMsgSent handler to fire for a sent=true dispatch")
	}
	select {
	case <-msgFired:
		t.Fatal("OnMsg handler must not fire for a message_sent dispatch")
	case <-time.After(50 * time.Millisecond):
	}

	d.dispatchMsg(context.Background(), ev, rbFor, false)
	select {
	case <-msgFired:
	case <-time.After(time.Second):
		t.Fatal("expected OnMsg handler to fire for a sent=false dispatch")
	}
	select {
	case <-sentFired:
		t.Fatal("OnMsgSent handler must not fire for a plain message dispatch")
	case <-time.After(50 * time.Millisecond):
	}
}
