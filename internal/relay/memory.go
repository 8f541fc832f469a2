package relay

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBridge is an in-process admission bridge for standalone mode: every
// device is implicitly approved and every policy decision allows. Audit
// events are kept in memory for inspection rather than discarded, so
// standalone deployments still exercise the audit path.
type MemoryBridge struct {
	mu     sync.Mutex
	events []MemoryEvent
}

type MemoryEvent struct {
	Event  string
	Fields map[string]any
}

func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{}
}

func (m *MemoryBridge) Verify(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, fmt.Errorf("empty token")
	}
	return Principal{Subject: token, TenantID: "standalone"}, nil
}

func (m *MemoryBridge) Lookup(ctx context.Context, tenantID, deviceID string) (DeviceRecord, error) {
	return DeviceRecord{DeviceID: deviceID, TenantID: tenantID, IsApproved: true}, nil
}

func (m *MemoryBridge) Decide(ctx context.Context, principal Principal, srcDevice, tgtDevice string, capabilities []Capability, pctx PolicyContext) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (m *MemoryBridge) Emit(ctx context.Context, event string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, MemoryEvent{Event: event, Fields: fields})
	return nil
}

func (m *MemoryBridge) Events() []MemoryEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MemoryEvent{}, m.events...)
}

// NewStandaloneBridge wires a Bridge whose four services are all the same
// in-memory fake, for deployments that do not have real auth/directory/
// policy/audit services available.
func NewStandaloneBridge() *Bridge {
	m := NewMemoryBridge()
	return &Bridge{Auth: m, Directory: m, Policy: m, Audit: m}
}
