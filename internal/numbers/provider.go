package numbers

import "context"

// CarrierProvider defines the carrier-agnostic interface used when a number
// must be purchased or released as part of provisioning.
//
// Rules:
// - No carrier SDK calls outside carrier adapters.
// - Keep request/response types carrier-agnostic; stash carrier raw payloads
//   in metadata if needed.
type CarrierProvider interface {
	Name() string

	SearchNumbers(ctx context.Context, req SearchNumbersRequest) (SearchNumbersResult, error)
	PurchaseNumber(ctx context.Context, req PurchaseNumberRequest) (PurchaseNumberResult, error)
	ReleaseNumber(ctx context.Context, req ReleaseNumberRequest) (ReleaseNumberResult, error)
}

type SearchNumbersRequest struct {
	CountryISO2 string `json:"country_iso2"`
	AreaCode    string `json:"area_code,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type SearchNumbersResult struct {
	// Numbers are available DIDs in E.164.
	Numbers []string `json:"numbers"`
}

type PurchaseNumberRequest struct {
	CountryISO2 string `json:"country_iso2"`

	// DesiredNumber is optional; if empty, the carrier selects best available.
	DesiredNumber string `json:"desired_number,omitempty"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty"`
}

type PurchaseNumberResult struct {
	// Number is the purchased number (E.164).
	Number string `json:"number"`

	ProviderNumberID string `json:"provider_number_id"`
}

type ReleaseNumberRequest struct {
	Number           string `json:"number"`
	ProviderNumberID string `json:"provider_number_id,omitempty"`
}

type ReleaseNumberResult struct {
	Released bool `json:"released"`
}
