package numbers

import (
	"context"
	"errors"
	"testing"

	"dialplane/internal/agents"
	"dialplane/internal/sipinfra"
)

func newTestService(t *testing.T) (*Service, *MemoryBindingRepo, *sipinfra.MemoryAPI) {
	t.Helper()
	repo := NewMemoryBindingRepo()
	api := sipinfra.NewMemoryAPI()
	rec, err := sipinfra.NewReconciler(api, nil, sipinfra.Config{
		TrunkName:        "inbound-trunk",
		DispatchRuleName: "inbound-dispatch",
		RoomPrefix:       "call-",
	})
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	store := agents.NewMemoryStore()
	store.Put(agents.Agent{ID: "agent_1", Name: "support"})
	svc, err := NewService(repo, rec, store)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, repo, api
}

type stubCarrier struct {
	purchased []string
	released  []string
	failNext  error
}

func (s *stubCarrier) Name() string { return "stub" }

func (s *stubCarrier) SearchNumbers(ctx context.Context, req SearchNumbersRequest) (SearchNumbersResult, error) {
	return SearchNumbersResult{Numbers: []string{"+15550001111"}}, nil
}

func (s *stubCarrier) PurchaseNumber(ctx context.Context, req PurchaseNumberRequest) (PurchaseNumberResult, error) {
	if s.failNext != nil {
		return PurchaseNumberResult{}, s.failNext
	}
	n := req.DesiredNumber
	if n == "" {
		n = "+15550001111"
	}
	s.purchased = append(s.purchased, n)
	return PurchaseNumberResult{Number: n, ProviderNumberID: "pn_" + n}, nil
}

func (s *stubCarrier) ReleaseNumber(ctx context.Context, req ReleaseNumberRequest) (ReleaseNumberResult, error) {
	if s.failNext != nil {
		return ReleaseNumberResult{}, s.failNext
	}
	s.released = append(s.released, req.Number)
	return ReleaseNumberResult{Released: true}, nil
}

func TestProvision_OwnNumberWiresTrunkAndRule(t *testing.T) {
	svc, repo, _ := newTestService(t)

	res, err := svc.Provision(context.Background(), ProvisionRequest{
		Number:  "(555) 123-4567",
		AgentID: "agent_1",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Binding.E164 != "+15551234567" {
		t.Fatalf("expected normalized did, got %q", res.Binding.E164)
	}
	if res.Setup.InboundTrunkID == "" || res.Setup.DispatchRuleID == "" {
		t.Fatalf("expected platform resources: %+v", res.Setup)
	}

	got, err := repo.GetByE164(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("binding not persisted: %v", err)
	}
	if !got.Enabled || got.AgentID != "agent_1" {
		t.Fatalf("unexpected binding: %+v", got)
	}
}

func TestProvision_InvalidNumberRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Provision(context.Background(), ProvisionRequest{Number: "not a number"})
	if !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
}

func TestProvision_UnknownAgentRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Number:  "+15551234567",
		AgentID: "agent_missing",
	})
	if !errors.Is(err, ErrAgentUnknown) {
		t.Fatalf("expected ErrAgentUnknown, got %v", err)
	}
}

func TestProvision_DuplicateNumberConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Provision(context.Background(), ProvisionRequest{Number: "+15551234567"}); err != nil {
		t.Fatalf("first provision: %v", err)
	}
	_, err := svc.Provision(context.Background(), ProvisionRequest{Number: "+15551234567"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestProvision_PurchaseThroughCarrier(t *testing.T) {
	svc, repo, _ := newTestService(t)
	carrier := &stubCarrier{}
	svc.WithCarrier(carrier)

	res, err := svc.Provision(context.Background(), ProvisionRequest{
		Purchase: &PurchaseNumberRequest{CountryISO2: "US", DesiredNumber: "+15559990000"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Binding.Provider != "stub" || res.Binding.ProviderNumberID == "" {
		t.Fatalf("expected carrier fields: %+v", res.Binding)
	}
	if len(carrier.purchased) != 1 {
		t.Fatalf("expected 1 purchase, got %d", len(carrier.purchased))
	}
	if _, err := repo.GetByE164(context.Background(), "+15559990000"); err != nil {
		t.Fatalf("binding not persisted: %v", err)
	}
}

func TestProvision_PurchaseWithoutCarrierFails(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Purchase: &PurchaseNumberRequest{CountryISO2: "US"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestDeprovision_TearsDownAndReleases(t *testing.T) {
	svc, repo, api := newTestService(t)
	carrier := &stubCarrier{}
	svc.WithCarrier(carrier)

	res, err := svc.Provision(context.Background(), ProvisionRequest{
		Purchase: &PurchaseNumberRequest{CountryISO2: "US", DesiredNumber: "+15551234567"},
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	out, err := svc.Deprovision(context.Background(), res.Binding.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out.Removal.TrunkDeleted {
		t.Fatalf("expected trunk deleted with last number: %+v", out.Removal)
	}
	if !out.Released || len(carrier.released) != 1 {
		t.Fatalf("expected carrier release")
	}
	if _, err := repo.GetByID(context.Background(), res.Binding.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected binding gone, got %v", err)
	}

	trunks, _ := api.ListInboundTrunks(context.Background())
	if len(trunks) != 0 {
		t.Fatalf("expected no trunks left, got %d", len(trunks))
	}
}

func TestDeprovision_UnknownBinding(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Deprovision(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBindAgent_AndUnbind(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Provision(context.Background(), ProvisionRequest{Number: "+15551234567"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	b, err := svc.BindAgent(context.Background(), res.Binding.ID, "agent_1")
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if b.AgentID != "agent_1" {
		t.Fatalf("expected agent bound")
	}

	if _, err := svc.BindAgent(context.Background(), res.Binding.ID, "agent_missing"); !errors.Is(err, ErrAgentUnknown) {
		t.Fatalf("expected ErrAgentUnknown, got %v", err)
	}

	b, err = svc.BindAgent(context.Background(), res.Binding.ID, "")
	if err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if b.AgentID != "" {
		t.Fatalf("expected agent unbound")
	}
}

func TestSetEnabled_Toggles(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Provision(context.Background(), ProvisionRequest{Number: "+15551234567"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	b, err := svc.SetEnabled(context.Background(), res.Binding.ID, false)
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if b.Enabled {
		t.Fatalf("expected disabled")
	}
	if b.UpdatedAt.Before(res.Binding.UpdatedAt) {
		t.Fatalf("expected updated_at bumped")
	}
}
