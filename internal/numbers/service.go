package numbers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialplane/internal/agents"
	"dialplane/internal/sipinfra"
	"dialplane/pkg/logger"
	"dialplane/pkg/phone"

	"github.com/google/uuid"
)

var (
	ErrInvalidNumber = errors.New("numbers: invalid phone number")
	ErrAgentUnknown  = errors.New("numbers: agent not found")
)

// Auditor is the subset of the audit service the number lifecycle reports to.
type Auditor interface {
	NumberProvisioned(ctx context.Context, did, trunkID, ruleID string)
	NumberReleased(ctx context.Context, did string, trunkDeleted bool)
}

// Service owns the DID lifecycle: purchase (optional), binding persistence,
// and trunk/dispatch-rule reconciliation on the telephony platform.
//
// Provisioning order is binding-first so a reconciler failure leaves a
// disabled binding behind rather than an orphaned trunk entry.
type Service struct {
	store      BindingStore
	reconciler *sipinfra.Reconciler
	agents     agents.Store
	carrier    CarrierProvider // optional; nil when numbers arrive pre-purchased
	audit      Auditor         // optional

	now func() time.Time
}

func NewService(store BindingStore, reconciler *sipinfra.Reconciler, agentStore agents.Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("numbers: binding store is required")
	}
	if reconciler == nil {
		return nil, errors.New("numbers: reconciler is required")
	}
	return &Service{
		store:      store,
		reconciler: reconciler,
		agents:     agentStore,
		now:        time.Now,
	}, nil
}

// WithCarrier enables number purchase/release through the given carrier.
func (s *Service) WithCarrier(p CarrierProvider) *Service {
	s.carrier = p
	return s
}

func (s *Service) WithAudit(a Auditor) *Service {
	s.audit = a
	return s
}

// ProvisionRequest onboards a number. Exactly one of Number (pre-purchased)
// or Purchase (buy through the carrier) drives where the DID comes from.
type ProvisionRequest struct {
	IntegrationID string `json:"integration_id"`

	// Number is a DID the caller already owns, in any parseable format.
	Number string `json:"number,omitempty"`

	// Purchase, when set, buys a number through the configured carrier.
	Purchase *PurchaseNumberRequest `json:"purchase,omitempty"`

	AgentID   string           `json:"agent_id,omitempty"`
	Overrides BindingOverrides `json:"overrides,omitempty"`
}

type ProvisionResult struct {
	Binding Binding               `json:"binding"`
	Setup   sipinfra.EnsureResult `json:"setup"`
}

// Provision purchases (if requested), persists the binding, then ensures the
// platform trunk and dispatch rule cover the number.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (ProvisionResult, error) {
	b := Binding{
		ID:            uuid.NewString(),
		IntegrationID: req.IntegrationID,
		AgentID:       req.AgentID,
		Overrides:     req.Overrides,
		Enabled:       true,
		CreatedAt:     s.now().UTC(),
	}
	b.UpdatedAt = b.CreatedAt

	if req.AgentID != "" {
		if err := s.checkAgent(ctx, req.AgentID); err != nil {
			return ProvisionResult{}, err
		}
	}

	switch {
	case req.Purchase != nil:
		if s.carrier == nil {
			return ProvisionResult{}, errors.New("numbers: no carrier configured for purchase")
		}
		res, err := s.carrier.PurchaseNumber(ctx, *req.Purchase)
		if err != nil {
			return ProvisionResult{}, fmt.Errorf("purchase number: %w", err)
		}
		b.Provider = s.carrier.Name()
		b.ProviderNumberID = res.ProviderNumberID
		b.E164 = res.Number
	case req.Number != "":
		did, err := phone.NormalizeE164(req.Number)
		if err != nil {
			return ProvisionResult{}, fmt.Errorf("%w: %v", ErrInvalidNumber, err)
		}
		b.E164 = did
	default:
		return ProvisionResult{}, fmt.Errorf("%w: number or purchase required", ErrInvalidNumber)
	}

	if err := s.store.Create(ctx, b); err != nil {
		return ProvisionResult{}, err
	}

	setup, err := s.reconciler.EnsureInboundSetup(ctx, b.E164)
	if err != nil {
		// Keep the binding so the operator can retry, but do not route to it.
		b.Enabled = false
		b.UpdatedAt = s.now().UTC()
		if uerr := s.store.Update(ctx, b); uerr != nil {
			logger.From(ctx).Error("disable binding after setup failure", "binding_id", b.ID, "err", uerr)
		}
		return ProvisionResult{}, fmt.Errorf("ensure inbound setup for %s: %w", b.E164, err)
	}

	if s.audit != nil {
		s.audit.NumberProvisioned(ctx, setup.NormalizedDid, setup.InboundTrunkID, setup.DispatchRuleID)
	}
	return ProvisionResult{Binding: b, Setup: setup}, nil
}

type DeprovisionResult struct {
	Removal sipinfra.RemoveResult `json:"removal"`

	// Released reports whether the carrier gave up the number.
	Released bool `json:"released"`
}

// Deprovision removes the number from inbound service: platform resources
// first, then the carrier release, then the binding row.
func (s *Service) Deprovision(ctx context.Context, bindingID string) (DeprovisionResult, error) {
	b, err := s.store.GetByID(ctx, bindingID)
	if err != nil {
		return DeprovisionResult{}, err
	}

	removal, err := s.reconciler.RemoveInboundSetup(ctx, b.E164)
	if err != nil {
		return DeprovisionResult{}, fmt.Errorf("remove inbound setup for %s: %w", b.E164, err)
	}

	out := DeprovisionResult{Removal: removal}
	if s.carrier != nil && b.ProviderNumberID != "" {
		res, err := s.carrier.ReleaseNumber(ctx, ReleaseNumberRequest{
			Number:           b.E164,
			ProviderNumberID: b.ProviderNumberID,
		})
		if err != nil {
			// Platform routing is already torn down; report but keep going so
			// the binding does not keep resolving.
			logger.From(ctx).Error("carrier release failed", "binding_id", b.ID, "did", b.E164, "err", err)
		} else {
			out.Released = res.Released
		}
	}

	if err := s.store.Delete(ctx, b.ID); err != nil {
		return out, err
	}
	if s.audit != nil {
		s.audit.NumberReleased(ctx, removal.NormalizedDid, removal.TrunkDeleted)
	}
	return out, nil
}

// BindAgent points the number at an agent (empty agentID unbinds and sends
// calls through the default policy).
func (s *Service) BindAgent(ctx context.Context, bindingID, agentID string) (Binding, error) {
	b, err := s.store.GetByID(ctx, bindingID)
	if err != nil {
		return Binding{}, err
	}
	if agentID != "" {
		if err := s.checkAgent(ctx, agentID); err != nil {
			return Binding{}, err
		}
	}
	b.AgentID = agentID
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// SetEnabled flips routing for the number without touching platform state.
func (s *Service) SetEnabled(ctx context.Context, bindingID string, enabled bool) (Binding, error) {
	b, err := s.store.GetByID(ctx, bindingID)
	if err != nil {
		return Binding{}, err
	}
	b.Enabled = enabled
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b); err != nil {
		return Binding{}, err
	}
	return b, nil
}

func (s *Service) SetOverrides(ctx context.Context, bindingID string, o BindingOverrides) (Binding, error) {
	b, err := s.store.GetByID(ctx, bindingID)
	if err != nil {
		return Binding{}, err
	}
	b.Overrides = o
	b.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, b); err != nil {
		return Binding{}, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, bindingID string) (Binding, error) {
	return s.store.GetByID(ctx, bindingID)
}

func (s *Service) List(ctx context.Context) ([]Binding, error) {
	return s.store.List(ctx)
}

func (s *Service) checkAgent(ctx context.Context, agentID string) error {
	if s.agents == nil {
		return nil
	}
	if _, err := s.agents.Get(ctx, agentID); err != nil {
		if errors.Is(err, agents.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAgentUnknown, agentID)
		}
		return err
	}
	return nil
}
