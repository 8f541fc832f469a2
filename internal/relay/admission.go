package relay

import "context"

// Principal is the authenticated identity behind a ConnectRequest.
type Principal struct {
	Subject  string
	TenantID string
}

// DeviceRecord is what the directory service knows about a device.
type DeviceRecord struct {
	DeviceID   string
	TenantID   string
	IsApproved bool
}

// Capability names gate what a session is permitted to carry.
type Capability string

const (
	CapView         Capability = "view"
	CapInput        Capability = "input"
	CapClipboard    Capability = "clipboard"
	CapFileTransfer Capability = "file_transfer"
	CapAudio        Capability = "audio"
	CapRecording    Capability = "recording"
)

// PolicyContext carries the ambient facts a policy decision may consult.
type PolicyContext struct {
	IP        string
	TimestampUnix int64
}

// Decision is the policy verdict: Allow, or Deny with a reason.
type Decision struct {
	Allowed bool
	Reason  string
}

// AuthService verifies a bearer token.
type AuthService interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// DirectoryService resolves a device_id to its record within a tenant.
type DirectoryService interface {
	Lookup(ctx context.Context, tenantID, deviceID string) (DeviceRecord, error)
}

// PolicyService decides whether a session between two devices is permitted.
type PolicyService interface {
	Decide(ctx context.Context, principal Principal, srcDevice, tgtDevice string, capabilities []Capability, pctx PolicyContext) (Decision, error)
}

// AuditService records admission-relevant events. Emit is fire-and-forget:
// failures are logged but never block admission.
type AuditService interface {
	Emit(ctx context.Context, event string, fields map[string]any) error
}

// Bridge consults the three remote services per the admission sequence.
// An error from auth denies with "not authenticated"; an error from
// directory is treated as Deny("admission-error"), and policy errors fail
// closed the same way.
type Bridge struct {
	Auth      AuthService
	Directory DirectoryService
	Policy    PolicyService
	Audit     AuditService
}

const reasonAdmissionError = "admission-error"

// Evaluate runs steps 1 and 4 of the §4.7 admission sequence: authenticate
// src via its token, then consult policy for src -> target. Steps 2
// (target existence) and 3 (busy) are registry-only checks performed by
// the caller before Evaluate is reached.
//
// auth_token is optional (spec §9 Open Question 1): when the caller passes
// an empty authToken, the identity already asserted by Hello is trusted and
// Auth.Verify is skipped rather than rejected as unauthenticated.
func (b *Bridge) Evaluate(ctx context.Context, authToken, tenantID, srcDevice, tgtDevice string, capabilities []Capability, pctx PolicyContext) Decision {
	principal := Principal{Subject: srcDevice, TenantID: tenantID}
	if authToken != "" {
		p, err := b.Auth.Verify(ctx, authToken)
		if err != nil {
			b.emit(ctx, "admission_denied", map[string]any{"reason": reasonAdmissionError, "src": srcDevice})
			return Decision{Allowed: false, Reason: "not authenticated"}
		}
		principal = p
	}

	if _, err := b.Directory.Lookup(ctx, tenantID, tgtDevice); err != nil {
		b.emit(ctx, "admission_denied", map[string]any{"reason": reasonAdmissionError, "src": srcDevice, "target": tgtDevice})
		return Decision{Allowed: false, Reason: reasonAdmissionError}
	}

	decision, err := b.Policy.Decide(ctx, principal, srcDevice, tgtDevice, capabilities, pctx)
	if err != nil {
		b.emit(ctx, "admission_denied", map[string]any{"reason": reasonAdmissionError, "src": srcDevice, "target": tgtDevice})
		return Decision{Allowed: false, Reason: reasonAdmissionError}
	}
	if !decision.Allowed {
		b.emit(ctx, "admission_denied", map[string]any{"reason": decision.Reason, "src": srcDevice, "target": tgtDevice})
	}
	return decision
}

func (b *Bridge) emit(ctx context.Context, event string, fields map[string]any) {
	if b.Audit == nil {
		return
	}
	if err := b.Audit.Emit(ctx, event, fields); err != nil {
		log.Warn("audit emit failed", "event", event, "error", err)
	}
}
