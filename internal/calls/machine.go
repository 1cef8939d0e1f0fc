package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dialplane/internal/agents"
	"dialplane/internal/event"
	"dialplane/internal/routing"
	"dialplane/pkg/logger"
	"dialplane/pkg/phone"

	"github.com/google/uuid"
)

// Ignored reasons reported in Outcome. Stable strings; they surface in webhook
// acknowledgments and logs.
const (
	IgnoredDuplicate         = "duplicate"
	IgnoredMissingRoom       = "missing_room"
	IgnoredNonSIPParticipant = "non_sip_participant"
	IgnoredUnsupportedEvent  = "unsupported_event"
	IgnoredNoCallRecord      = "no_call_record"
	IgnoredParticipantOther  = "participant_mismatch"
)

// Outcome is the structured result of processing one normalized event.
type Outcome struct {
	FirstSeen     bool   `json:"first_seen"`
	IgnoredReason string `json:"ignored_reason,omitempty"`

	DispatchAttempted bool `json:"dispatch_attempted"`
	DispatchSucceeded bool `json:"dispatch_succeeded"`

	CallID string `json:"call_id,omitempty"`
}

// Options tune SIP participant classification.
type Options struct {
	// TreatAllJoinsAsSIP classifies every join as SIP-originated.
	TreatAllJoinsAsSIP bool

	// SIPIdentityPrefix marks SIP participants by identity when the platform
	// omits kind and attributes.
	SIPIdentityPrefix string
}

// AuditSink receives best-effort operational audit notifications.
type AuditSink interface {
	DispatchFailure(ctx context.Context, roomName, callID, reason string)
}

// StateMachine consumes normalized webhook events and maintains one
// consistent call lifecycle per room.
//
// Rules:
//   - The dedup gate is the sole idempotency mechanism for redelivered
//     webhooks; everything after it assumes the event is being applied once.
//   - Agent dispatch is attempted at most once per call, gated by the
//     AgentDispatched flag. A failed dispatch leaves the flag unset so a later
//     join may retry; there is no automatic retry.
//   - Per-room updates are not serialized here; the store contract keeps
//     out-of-order application safe on immutable fields.
type StateMachine struct {
	store      Store
	dedup      DedupSet
	resolver   routing.Resolver
	dispatcher agents.Dispatcher
	opts       Options

	// Audit is optional; dispatch failures are recorded there when set.
	Audit AuditSink

	Now func() time.Time
}

func NewStateMachine(store Store, dedup DedupSet, resolver routing.Resolver, dispatcher agents.Dispatcher, opts Options) *StateMachine {
	return &StateMachine{
		store:      store,
		dedup:      dedup,
		resolver:   resolver,
		dispatcher: dispatcher,
		opts:       opts,
		Now:        time.Now,
	}
}

// Handle applies one event. A non-nil error means the event could not be
// applied at all (store unavailable); the transport layer decides whether to
// let the platform redeliver.
func (m *StateMachine) Handle(ctx context.Context, e event.Event) (Outcome, error) {
	if m.store == nil || m.dedup == nil {
		return Outcome{}, errors.New("calls: state machine not configured")
	}

	first, err := m.dedup.FirstSeen(ctx, e.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("calls: dedup gate: %w", err)
	}
	if !first {
		return Outcome{IgnoredReason: IgnoredDuplicate}, nil
	}

	out := Outcome{FirstSeen: true}
	if e.RoomName == "" {
		out.IgnoredReason = IgnoredMissingRoom
		return out, nil
	}

	switch e.Type {
	case event.TypeParticipantJoined:
		return m.handleJoin(ctx, e, out)
	case event.TypeParticipantLeft:
		return m.handleLeave(ctx, e, out)
	default:
		out.IgnoredReason = IgnoredUnsupportedEvent
		return out, nil
	}
}

func (m *StateMachine) handleJoin(ctx context.Context, e event.Event, out Outcome) (Outcome, error) {
	log := logger.From(ctx)

	if !m.isSIPParticipant(e.Participant) {
		out.IgnoredReason = IgnoredNonSIPParticipant
		return out, nil
	}

	now := m.Now().UTC()
	from, to := callNumbers(e.Participant)
	candidate := Call{
		CallID:         uuid.NewString(),
		RoomName:       e.RoomName,
		Status:         CallStatusSIPParticipantJoined,
		SIPParticipant: participantKey(e.Participant),
		From:           from,
		To:             to,
		Raw:            e.Raw,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	c, created, err := m.store.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return out, fmt.Errorf("calls: upsert call: %w", err)
	}
	out.CallID = c.CallID

	if !created {
		// Immutable facts stay as recorded at first join, even if this event
		// carries different SIP attributes.
		if !c.Status.Terminal() {
			c.Status = CallStatusSIPParticipantJoined
		}
		c.Raw = e.Raw
		c.UpdatedAt = now
		if err := m.store.UpdateMutable(ctx, c); err != nil {
			return out, fmt.Errorf("calls: update call: %w", err)
		}
	}

	if c.AgentDispatched || c.Status.Terminal() {
		return out, nil
	}

	out.DispatchAttempted = true
	if err := m.dispatchAgent(ctx, c, e); err != nil {
		// Reported, not retried here. AgentDispatched stays false so a later
		// join event for this room may retry.
		log.Error("agent dispatch failed", "room", c.RoomName, "call_id", c.CallID, "err", err)
		if m.Audit != nil {
			m.Audit.DispatchFailure(ctx, c.RoomName, c.CallID, err.Error())
		}
		return out, nil
	}

	c.AgentDispatched = true
	c.UpdatedAt = m.Now().UTC()
	if err := m.store.UpdateMutable(ctx, c); err != nil {
		return out, fmt.Errorf("calls: mark dispatched: %w", err)
	}
	out.DispatchSucceeded = true
	return out, nil
}

func (m *StateMachine) handleLeave(ctx context.Context, e event.Event, out Outcome) (Outcome, error) {
	if !m.isSIPParticipant(e.Participant) {
		out.IgnoredReason = IgnoredNonSIPParticipant
		return out, nil
	}

	c, err := m.store.GetByRoom(ctx, e.RoomName)
	if errors.Is(err, ErrNotFound) {
		out.IgnoredReason = IgnoredNoCallRecord
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("calls: load call: %w", err)
	}
	out.CallID = c.CallID

	if c.Status.Terminal() {
		return out, nil
	}

	// Only the originally recorded SIP leg ends the call; another SIP leg
	// leaving (multi-party) does not. An empty recorded key matches anything,
	// we have nothing to compare against.
	if c.SIPParticipant != "" && participantKey(e.Participant) != c.SIPParticipant {
		out.IgnoredReason = IgnoredParticipantOther
		return out, nil
	}

	c.Status = CallStatusEnded
	c.Raw = e.Raw
	c.UpdatedAt = m.Now().UTC()
	if err := m.store.UpdateMutable(ctx, c); err != nil {
		return out, fmt.Errorf("calls: end call: %w", err)
	}
	return out, nil
}

func (m *StateMachine) dispatchAgent(ctx context.Context, c Call, e event.Event) error {
	if m.resolver == nil || m.dispatcher == nil {
		return errors.New("calls: dispatch not configured")
	}

	res := m.resolver.Resolve(ctx, routing.RouteContext{
		RoomName:    c.RoomName,
		From:        c.From,
		To:          c.To,
		Participant: e.Participant,
	})

	_, err := m.dispatcher.Dispatch(ctx, agents.DispatchRequest{
		RoomName: c.RoomName,
		Config:   res.Config,
		Metadata: map[string]string{
			"call_id": c.CallID,
			"from":    c.From,
			"to":      c.To,
		},
	})
	return err
}

// isSIPParticipant classifies a join/leave as SIP-originated.
//
// Precedence is a documented contract, not an implementation detail:
// override flag, then participant kind, then identity prefix, then any
// "sip."-prefixed attribute key.
func (m *StateMachine) isSIPParticipant(p *event.Participant) bool {
	if m.opts.TreatAllJoinsAsSIP {
		return true
	}
	if p == nil {
		return false
	}
	if strings.Contains(strings.ToLower(p.Kind), "sip") {
		return true
	}
	if m.opts.SIPIdentityPrefix != "" && strings.HasPrefix(p.Identity, m.opts.SIPIdentityPrefix) {
		return true
	}
	for k := range p.Attributes {
		if strings.HasPrefix(k, "sip.") {
			return true
		}
	}
	return false
}

// participantKey picks the stable identifier used for leave matching:
// the participant id, or identity when the platform omitted the id.
func participantKey(p *event.Participant) string {
	if p == nil {
		return ""
	}
	if p.ID != "" {
		return p.ID
	}
	return p.Identity
}

// SIP attribute keys carrying the caller and dialed numbers.
const (
	attrFromNumber      = "sip.phoneNumber"
	attrTrunkNumber     = "sip.trunkPhoneNumber"
	attrFromNumberAlt   = "sip.from"
	attrCalledNumberAlt = "sip.to"
)

// callNumbers extracts from/to out of the SIP attributes, normalized to E.164
// where possible. Unparseable values are kept raw rather than dropped; a
// half-formed caller id beats no caller id in diagnostics.
func callNumbers(p *event.Participant) (from, to string) {
	if p == nil {
		return "", ""
	}
	from = firstAttr(p.Attributes, attrFromNumber, attrFromNumberAlt)
	to = firstAttr(p.Attributes, attrTrunkNumber, attrCalledNumberAlt)
	if n, err := phone.NormalizeE164(from); err == nil {
		from = n
	}
	if n, err := phone.NormalizeE164(to); err == nil {
		to = n
	}
	return from, to
}

func firstAttr(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(attrs[k]); v != "" {
			return v
		}
	}
	return ""
}
