package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAuth calls a remote auth service's token verification endpoint.
type HTTPAuth struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPAuth(baseURL string) *HTTPAuth {
	return &HTTPAuth{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (a *HTTPAuth) Verify(ctx context.Context, token string) (Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/v1/auth/verify", bytes.NewBufferString(`{}`))
	if err != nil {
		return Principal{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Principal{}, fmt.Errorf("verify failed with status %d: %s", resp.StatusCode, string(body))
	}

	var principal Principal
	if err := json.NewDecoder(resp.Body).Decode(&principal); err != nil {
		return Principal{}, fmt.Errorf("decode verify response: %w", err)
	}
	return principal, nil
}

// HTTPDirectory calls a remote directory service for device lookups.
type HTTPDirectory struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (d *HTTPDirectory) Lookup(ctx context.Context, tenantID, deviceID string) (DeviceRecord, error) {
	url := fmt.Sprintf("%s/api/v1/tenants/%s/devices/%s", d.BaseURL, tenantID, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return DeviceRecord{}, fmt.Errorf("device not found: %s", deviceID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return DeviceRecord{}, fmt.Errorf("lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	var rec DeviceRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return DeviceRecord{}, fmt.Errorf("decode lookup response: %w", err)
	}
	return rec, nil
}

// HTTPPolicy calls a remote policy decision service.
type HTTPPolicy struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPPolicy(baseURL string) *HTTPPolicy {
	return &HTTPPolicy{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

type policyDecideRequest struct {
	Principal    Principal     `json:"principal"`
	SrcDevice    string        `json:"src_device"`
	TgtDevice    string        `json:"tgt_device"`
	Capabilities []Capability  `json:"capabilities"`
	Context      PolicyContext `json:"context"`
}

func (p *HTTPPolicy) Decide(ctx context.Context, principal Principal, srcDevice, tgtDevice string, capabilities []Capability, pctx PolicyContext) (Decision, error) {
	body, err := json.Marshal(policyDecideRequest{
		Principal:    principal,
		SrcDevice:    srcDevice,
		TgtDevice:    tgtDevice,
		Capabilities: capabilities,
		Context:      pctx,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("marshal decide request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/policy/decide", bytes.NewBuffer(body))
	if err != nil {
		return Decision{}, fmt.Errorf("build decide request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("decide request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Decision{}, fmt.Errorf("decide failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Decision{}, fmt.Errorf("decode decide response: %w", err)
	}
	return decision, nil
}

// HTTPAudit ships admission events to a remote audit sink. Emit never
// returns an error that would block the caller's admission path; failures
// are logged by the Bridge.
type HTTPAudit struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewHTTPAudit(baseURL string) *HTTPAudit {
	return &HTTPAudit{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 5 * time.Second}}
}

func (a *HTTPAudit) Emit(ctx context.Context, event string, fields map[string]any) error {
	payload := map[string]any{"event": event, "fields": fields}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/v1/audit/events", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("audit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("audit emit failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
