package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const dispatchTimeout = 10 * time.Second

// HTTPDispatcher posts dispatch requests to the platform dispatch endpoint,
// authenticated with a short-lived token signed by the platform API secret.
type HTTPDispatcher struct {
	endpoint  string
	apiKey    string
	apiSecret string
	client    *http.Client
}

func NewHTTPDispatcher(endpoint, apiKey, apiSecret string) *HTTPDispatcher {
	return &HTTPDispatcher{
		endpoint:  endpoint,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: dispatchTimeout},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	if req.RoomName == "" {
		return DispatchResult{}, fmt.Errorf("agents: room_name required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("agents: encode dispatch: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return DispatchResult{}, err
	}
	tok, err := d.accessToken()
	if err != nil {
		return DispatchResult{}, fmt.Errorf("agents: sign dispatch token: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+tok)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("agents: dispatch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return DispatchResult{}, fmt.Errorf("agents: dispatch rejected: status %d: %s", resp.StatusCode, snippet)
	}

	var out DispatchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// A 2xx without a parseable body still dispatched; report success
		// without an id rather than failing a completed operation.
		return DispatchResult{}, nil
	}
	return out, nil
}

// accessToken signs a short-lived platform API token (HS256, issuer = API key).
func (d *HTTPDispatcher) accessToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    d.apiKey,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(d.apiSecret))
}
