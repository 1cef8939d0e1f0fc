package sipinfra

import (
	"context"
	"errors"
)

var ErrResourceNotFound = errors.New("sipinfra: resource not found")

// InboundTrunk is the platform resource holding the set of DIDs accepted for
// inbound SIP calls.
type InboundTrunk struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Numbers []string `json:"numbers"`
}

// DispatchRule maps inbound trunk traffic to a room-naming scheme.
type DispatchRule struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	TrunkIDs   []string `json:"trunk_ids"`
	RoomPrefix string   `json:"room_prefix"`
}

// TrunkUpdate and RuleUpdate are set mutations, not full replacements.
// The platform applies add/remove against its current state, which narrows
// (not closes) the window where two concurrent reconciliations clobber each
// other's membership changes.
type TrunkUpdate struct {
	AddNumbers    []string `json:"add_numbers,omitempty"`
	RemoveNumbers []string `json:"remove_numbers,omitempty"`
}

type RuleUpdate struct {
	AddTrunkIDs    []string `json:"add_trunk_ids,omitempty"`
	RemoveTrunkIDs []string `json:"remove_trunk_ids,omitempty"`
}

// ManagementAPI abstracts the telephony platform's trunk and dispatch-rule
// management surface.
//
// Rules:
// - No caching of resource ids: trunks and rules are shared, long-lived, and
//   mutated by other processes, so callers list and match by name every time.
// - Errors propagate untouched; there is no safe automatic remediation here.
type ManagementAPI interface {
	ListInboundTrunks(ctx context.Context) ([]InboundTrunk, error)
	CreateInboundTrunk(ctx context.Context, t InboundTrunk) (InboundTrunk, error)
	UpdateInboundTrunk(ctx context.Context, id string, upd TrunkUpdate) (InboundTrunk, error)
	DeleteInboundTrunk(ctx context.Context, id string) error

	ListDispatchRules(ctx context.Context) ([]DispatchRule, error)
	CreateDispatchRule(ctx context.Context, r DispatchRule) (DispatchRule, error)
	UpdateDispatchRule(ctx context.Context, id string, upd RuleUpdate) (DispatchRule, error)
	DeleteDispatchRule(ctx context.Context, id string) error
}
