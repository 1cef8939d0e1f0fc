package sipinfra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const managementTimeout = 15 * time.Second

// HTTPManagementAPI talks JSON over HTTP to the platform management endpoints,
// authenticated with short-lived tokens signed by the platform API secret.
type HTTPManagementAPI struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

func NewHTTPManagementAPI(baseURL, apiKey, apiSecret string) *HTTPManagementAPI {
	return &HTTPManagementAPI{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: managementTimeout},
	}
}

func (a *HTTPManagementAPI) ListInboundTrunks(ctx context.Context) ([]InboundTrunk, error) {
	var out struct {
		Trunks []InboundTrunk `json:"trunks"`
	}
	if err := a.do(ctx, http.MethodGet, "/sip/trunks", nil, &out); err != nil {
		return nil, err
	}
	return out.Trunks, nil
}

func (a *HTTPManagementAPI) CreateInboundTrunk(ctx context.Context, t InboundTrunk) (InboundTrunk, error) {
	var out InboundTrunk
	if err := a.do(ctx, http.MethodPost, "/sip/trunks", t, &out); err != nil {
		return InboundTrunk{}, err
	}
	return out, nil
}

func (a *HTTPManagementAPI) UpdateInboundTrunk(ctx context.Context, id string, upd TrunkUpdate) (InboundTrunk, error) {
	var out InboundTrunk
	if err := a.do(ctx, http.MethodPatch, "/sip/trunks/"+id, upd, &out); err != nil {
		return InboundTrunk{}, err
	}
	return out, nil
}

func (a *HTTPManagementAPI) DeleteInboundTrunk(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/sip/trunks/"+id, nil, nil)
}

func (a *HTTPManagementAPI) ListDispatchRules(ctx context.Context) ([]DispatchRule, error) {
	var out struct {
		Rules []DispatchRule `json:"rules"`
	}
	if err := a.do(ctx, http.MethodGet, "/sip/dispatch-rules", nil, &out); err != nil {
		return nil, err
	}
	return out.Rules, nil
}

func (a *HTTPManagementAPI) CreateDispatchRule(ctx context.Context, r DispatchRule) (DispatchRule, error) {
	var out DispatchRule
	if err := a.do(ctx, http.MethodPost, "/sip/dispatch-rules", r, &out); err != nil {
		return DispatchRule{}, err
	}
	return out, nil
}

func (a *HTTPManagementAPI) UpdateDispatchRule(ctx context.Context, id string, upd RuleUpdate) (DispatchRule, error) {
	var out DispatchRule
	if err := a.do(ctx, http.MethodPatch, "/sip/dispatch-rules/"+id, upd, &out); err != nil {
		return DispatchRule{}, err
	}
	return out, nil
}

func (a *HTTPManagementAPI) DeleteDispatchRule(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/sip/dispatch-rules/"+id, nil, nil)
}

func (a *HTTPManagementAPI) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sipinfra: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	tok, err := a.accessToken()
	if err != nil {
		return fmt.Errorf("sipinfra: sign management token: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("sipinfra: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrResourceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sipinfra: %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sipinfra: decode response: %w", err)
	}
	return nil
}

func (a *HTTPManagementAPI) accessToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.apiKey,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.apiSecret))
}
