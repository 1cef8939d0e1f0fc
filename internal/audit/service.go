package audit

import (
	"context"
	"errors"
	"time"

	"dialplane/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal operational audit information.
//
// Audit is best-effort: a failed append is logged and swallowed, it never
// fails the operation being audited.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// NumberProvisioned records a DID onboarded onto the inbound trunk.
func (s *Service) NumberProvisioned(ctx context.Context, did, trunkID, ruleID string) {
	s.appendBestEffort(ctx, Event{
		Type:     EventTypeNumberProvisioned,
		Did:      did,
		Message:  "inbound setup ensured",
		Metadata: `{"trunk_id":"` + trunkID + `","rule_id":"` + ruleID + `"}`,
	})
}

// NumberReleased records a DID removed from inbound service.
func (s *Service) NumberReleased(ctx context.Context, did string, trunkDeleted bool) {
	msg := "number removed from trunk"
	if trunkDeleted {
		msg = "trunk deleted with last number"
	}
	s.appendBestEffort(ctx, Event{
		Type:    EventTypeNumberReleased,
		Did:     did,
		Message: msg,
	})
}

// DispatchFailure records an agent dispatch that was attempted and failed.
func (s *Service) DispatchFailure(ctx context.Context, roomName, callID, reason string) {
	s.appendBestEffort(ctx, Event{
		Type:     EventTypeDispatchFailure,
		RoomName: roomName,
		CallID:   callID,
		Message:  reason,
	})
}

func (s *Service) appendBestEffort(ctx context.Context, e Event) {
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "err", err)
	}
}
