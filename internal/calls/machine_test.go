package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"dialplane/internal/agents"
	"dialplane/internal/event"
	"dialplane/internal/routing"
)

type stubResolver struct {
	res routing.Resolution
}

func (s stubResolver) Resolve(ctx context.Context, rc routing.RouteContext) routing.Resolution {
	return s.res
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls []agents.DispatchRequest
	err   error
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req agents.DispatchRequest) (agents.DispatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return agents.DispatchResult{}, s.err
	}
	return agents.DispatchResult{DispatchID: "disp-1"}, nil
}

func (s *stubDispatcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestMachine(d *stubDispatcher) (*StateMachine, *MemoryStore) {
	store := NewMemoryStore()
	m := NewStateMachine(store, NewMemoryDedupSet(), stubResolver{}, d, Options{SIPIdentityPrefix: "sip_"})
	return m, store
}

func joinEvent(id, room, participantID string) event.Event {
	return event.Event{
		ID:       id,
		Type:     event.TypeParticipantJoined,
		RoomName: room,
		Participant: &event.Participant{
			ID:       participantID,
			Identity: "sip_+15550001111",
			Kind:     "SIP",
			Attributes: map[string]string{
				"sip.phoneNumber":      "+15550001111",
				"sip.trunkPhoneNumber": "+15551234567",
			},
		},
	}
}

func leaveEvent(id, room, participantID string) event.Event {
	e := joinEvent(id, room, participantID)
	e.Type = event.TypeParticipantLeft
	return e
}

func TestHandle_DedupIdempotence(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestMachine(d)

	out1, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out1.FirstSeen {
		t.Fatalf("expected first seen")
	}

	out2, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out2.FirstSeen || out2.IgnoredReason != IgnoredDuplicate {
		t.Fatalf("expected duplicate on redelivery, got %+v", out2)
	}
	if d.count() != 1 {
		t.Fatalf("redelivery must not dispatch again")
	}
}

func TestHandle_ConcurrentDuplicatesYieldOneFirstSeen(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestMachine(d)

	const n = 16
	var wg sync.WaitGroup
	firsts := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := m.Handle(context.Background(), joinEvent("ev-conc", "call-1", "PA1"))
			if err != nil {
				t.Errorf("unexpected err: %v", err)
				return
			}
			firsts <- out.FirstSeen
		}()
	}
	wg.Wait()
	close(firsts)

	got := 0
	for f := range firsts {
		if f {
			got++
		}
	}
	if got != 1 {
		t.Fatalf("expected exactly one first-seen, got %d", got)
	}
}

func TestHandle_MissingRoom(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestMachine(d)

	e := joinEvent("ev1", "", "PA1")
	out, err := m.Handle(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.IgnoredReason != IgnoredMissingRoom {
		t.Fatalf("expected missing_room, got %+v", out)
	}
}

func TestHandle_UnsupportedEvent(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestMachine(d)

	out, err := m.Handle(context.Background(), event.Event{ID: "ev1", Type: "room_started", RoomName: "call-1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.IgnoredReason != IgnoredUnsupportedEvent {
		t.Fatalf("expected unsupported_event, got %+v", out)
	}
}

func TestHandle_NonSIPJoinIgnored(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestMachine(d)

	e := event.Event{
		ID:          "ev1",
		Type:        event.TypeParticipantJoined,
		RoomName:    "call-1",
		Participant: &event.Participant{ID: "PA1", Identity: "web_user", Kind: "STANDARD"},
	}
	out, err := m.Handle(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.IgnoredReason != IgnoredNonSIPParticipant {
		t.Fatalf("expected non_sip_participant, got %+v", out)
	}
	if d.count() != 0 {
		t.Fatalf("non-SIP join must not dispatch")
	}
}

func TestHandle_ClassificationPrecedence(t *testing.T) {
	d := &stubDispatcher{}
	store := NewMemoryStore()

	// Override flag wins even for an unmistakably non-SIP participant.
	m := NewStateMachine(store, NewMemoryDedupSet(), stubResolver{}, d, Options{TreatAllJoinsAsSIP: true})
	e := event.Event{
		ID:          "ev1",
		Type:        event.TypeParticipantJoined,
		RoomName:    "call-1",
		Participant: &event.Participant{ID: "PA1", Identity: "web_user", Kind: "STANDARD"},
	}
	out, err := m.Handle(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.IgnoredReason != "" {
		t.Fatalf("override flag must classify as SIP, got %+v", out)
	}

	// Identity prefix alone is enough.
	m2, _ := newTestMachine(&stubDispatcher{})
	e2 := event.Event{
		ID:          "ev2",
		Type:        event.TypeParticipantJoined,
		RoomName:    "call-2",
		Participant: &event.Participant{ID: "PA2", Identity: "sip_anything"},
	}
	if out, err := m2.Handle(context.Background(), e2); err != nil || out.IgnoredReason != "" {
		t.Fatalf("identity prefix must classify as SIP, got %+v err %v", out, err)
	}

	// A sip.* attribute key alone is enough.
	m3, _ := newTestMachine(&stubDispatcher{})
	e3 := event.Event{
		ID:          "ev3",
		Type:        event.TypeParticipantJoined,
		RoomName:    "call-3",
		Participant: &event.Participant{ID: "PA3", Identity: "x", Attributes: map[string]string{"sip.callID": "abc"}},
	}
	if out, err := m3.Handle(context.Background(), e3); err != nil || out.IgnoredReason != "" {
		t.Fatalf("sip attribute must classify as SIP, got %+v err %v", out, err)
	}
}

func TestHandle_AtMostOneDispatchPerCall(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	for i := 0; i < 5; i++ {
		if _, err := m.Handle(context.Background(), joinEvent(fmt.Sprintf("ev%d", i), "call-1", "PA1")); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	if d.count() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", d.count())
	}
	c, err := store.GetByRoom(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !c.AgentDispatched {
		t.Fatalf("expected agent_dispatched set")
	}
}

func TestHandle_DispatchFailureRetriesOnLaterJoin(t *testing.T) {
	d := &stubDispatcher{err: errors.New("dispatcher down")}
	m, store := newTestMachine(d)

	out, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1"))
	if err != nil {
		t.Fatalf("dispatch failure must not surface as handle error: %v", err)
	}
	if !out.DispatchAttempted || out.DispatchSucceeded {
		t.Fatalf("expected attempted-but-failed, got %+v", out)
	}

	c, _ := store.GetByRoom(context.Background(), "call-1")
	if c.AgentDispatched {
		t.Fatalf("failed dispatch must not set agent_dispatched")
	}

	// Dispatcher recovers; a later join retries.
	d.err = nil
	out2, err := m.Handle(context.Background(), joinEvent("ev2", "call-1", "PA1"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out2.DispatchSucceeded {
		t.Fatalf("expected retry to succeed, got %+v", out2)
	}
	if d.count() != 2 {
		t.Fatalf("expected two attempts, got %d", d.count())
	}
}

func TestHandle_ImmutableCallFacts(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	if _, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Later join with different SIP attributes and participant.
	e2 := joinEvent("ev2", "call-1", "PA2")
	e2.Participant.Attributes["sip.phoneNumber"] = "+19998887777"
	if _, err := m.Handle(context.Background(), e2); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _ := store.GetByRoom(context.Background(), "call-1")
	if c.From != "+15550001111" {
		t.Fatalf("from must stay as first recorded, got %q", c.From)
	}
	if c.SIPParticipant != "PA1" {
		t.Fatalf("sip participant must stay as first recorded, got %q", c.SIPParticipant)
	}
}

func TestHandle_LeaveByOriginalParticipantEndsCall(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	if _, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := m.Handle(context.Background(), leaveEvent("ev2", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _ := store.GetByRoom(context.Background(), "call-1")
	if c.Status != CallStatusEnded {
		t.Fatalf("expected ended, got %q", c.Status)
	}
}

func TestHandle_LeaveByOtherParticipantDoesNotEndCall(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	if _, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	out, err := m.Handle(context.Background(), leaveEvent("ev2", "call-1", "PA9"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.IgnoredReason != IgnoredParticipantOther {
		t.Fatalf("expected participant_mismatch, got %+v", out)
	}

	c, _ := store.GetByRoom(context.Background(), "call-1")
	if c.Status.Terminal() {
		t.Fatalf("other leg leaving must not end the call")
	}
}

func TestHandle_LeaveWithoutRecordedParticipantEndsCall(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	e := joinEvent("ev1", "call-1", "")
	e.Participant.Identity = "" // nothing to record
	e.Participant.Kind = "SIP"
	if _, err := m.Handle(context.Background(), e); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := m.Handle(context.Background(), leaveEvent("ev2", "call-1", "PA-any")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c, _ := store.GetByRoom(context.Background(), "call-1")
	if c.Status != CallStatusEnded {
		t.Fatalf("leave must match when no participant was recorded, got %q", c.Status)
	}
}

func TestHandle_LeaveWithoutCallRecordIsNoop(t *testing.T) {
	d := &stubDispatcher{}
	m, _ := newTestMachine(d)

	out, err := m.Handle(context.Background(), leaveEvent("ev1", "call-unknown", "PA1"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.IgnoredReason != IgnoredNoCallRecord {
		t.Fatalf("expected no_call_record, got %+v", out)
	}
}

func TestHandle_RepeatedLeavesAfterEndAreNoops(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	if _, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := m.Handle(context.Background(), leaveEvent("ev2", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	before, _ := store.GetByRoom(context.Background(), "call-1")

	if _, err := m.Handle(context.Background(), leaveEvent("ev3", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	after, _ := store.GetByRoom(context.Background(), "call-1")
	if after.Status != CallStatusEnded || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("repeated leave must be a no-op")
	}
}

func TestHandle_JoinAfterEndDoesNotResurrectCall(t *testing.T) {
	d := &stubDispatcher{}
	m, store := newTestMachine(d)

	if _, err := m.Handle(context.Background(), joinEvent("ev1", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := m.Handle(context.Background(), leaveEvent("ev2", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := m.Handle(context.Background(), joinEvent("ev3", "call-1", "PA1")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	c, _ := store.GetByRoom(context.Background(), "call-1")
	if c.Status != CallStatusEnded {
		t.Fatalf("terminal status must stick, got %q", c.Status)
	}
}
