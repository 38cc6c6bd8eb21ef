package handlers

import (
	"testing"

	"github.com/1314wu/server-p2p-signal/service/signal"
	errs "github.com/1314wu/server-p2p-signal/tools/errs"
)

func forwardFrame(seq int64, to, text string) *signal.Frame {
	return &signal.Frame{
		Event: signal.EventMessage,
		Seq:   seq,
		Data:  map[string]any{"to": to, "text": text},
	}
}

func TestForwardStampsSender(t *testing.T) {
	s := newHarness(t)

	aliceSess, alice := authenticate(t, s, "c1", "tA")
	_, bob := authenticate(t, s, "c2", "tB")

	dispatch(t, s, forwardFrame(7, "bob", "hi"), aliceSess)

	msgs := bob.eventsNamed(signal.EventMessage)
	if len(msgs) != 1 {
		t.Fatalf("bob got %d messages, want 1", len(msgs))
	}
	if msgs[0].Data["from"] != "alice" {
		t.Fatalf("from = %v, want the authenticated sender", msgs[0].Data["from"])
	}
	if _, ok := msgs[0].Data["to"]; ok {
		t.Fatal("destination field must be consumed")
	}
	if msgs[0].Data["text"] != "hi" {
		t.Fatalf("text = %v", msgs[0].Data["text"])
	}

	ack := alice.lastAck(t)
	if ack.Seq != 7 || ack.Data != nil {
		t.Fatalf("success ack = %+v, want seq 7 with no error payload", ack)
	}
}

func TestForwardSpoofedSenderOverwritten(t *testing.T) {
	s := newHarness(t)

	aliceSess, _ := authenticate(t, s, "c1", "tA")
	_, bob := authenticate(t, s, "c2", "tB")

	f := forwardFrame(1, "bob", "hi")
	f.Data["from"] = "mallory"
	dispatch(t, s, f, aliceSess)

	msgs := bob.eventsNamed(signal.EventMessage)
	if len(msgs) != 1 || msgs[0].Data["from"] != "alice" {
		t.Fatalf("claimed sender must be overwritten, got %v", msgs)
	}
}

func TestForwardUnreachable(t *testing.T) {
	s := newHarness(t)

	aliceSess, alice := authenticate(t, s, "c1", "tA")

	dispatch(t, s, forwardFrame(3, "carol", "hi"), aliceSess)

	ack := alice.lastAck(t)
	if code, _ := ack.Data["code"].(int); code != errs.UnreachableCode {
		t.Fatalf("code = %v, want %d", ack.Data["code"], errs.UnreachableCode)
	}
	if alice.isClosed() {
		t.Fatal("unreachable destination must not close the sender")
	}
}

func TestForwardUnauthenticatedSender(t *testing.T) {
	s := newHarness(t)

	_, bob := authenticate(t, s, "c2", "tB")

	sess, p := connect(t, s, "c1")
	dispatch(t, s, forwardFrame(1, "bob", "hi"), sess)

	if code, _ := p.lastAck(t).Data["code"].(int); code != errs.UnauthSenderCode {
		t.Fatalf("code = %v, want %d", p.lastAck(t).Data["code"], errs.UnauthSenderCode)
	}
	if !p.isClosed() {
		t.Fatal("unauthenticated sender is a protocol violation, connection must close")
	}
	if len(bob.eventsNamed(signal.EventMessage)) != 0 {
		t.Fatal("nothing may be delivered for an unauthenticated sender")
	}
}

func TestForwardMissingDestination(t *testing.T) {
	s := newHarness(t)

	aliceSess, alice := authenticate(t, s, "c1", "tA")

	dispatch(t, s, &signal.Frame{Event: signal.EventMessage, Seq: 2, Data: map[string]any{"text": "hi"}}, aliceSess)

	if code, _ := alice.lastAck(t).Data["code"].(int); code != errs.BadFrameCode {
		t.Fatalf("code = %v, want %d", alice.lastAck(t).Data["code"], errs.BadFrameCode)
	}
	if alice.isClosed() {
		t.Fatal("a malformed forward must not close the sender")
	}
}
