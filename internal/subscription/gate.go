// ABOUTME: Tenant authorization gate consulted before classification.
// ABOUTME: Static mode reads config; database mode reads the tenants table.

package subscription

import (
	"context"
	"fmt"
)

// Gate decides whether a workspace may use the gateway.
type Gate interface {
	// Allowed reports whether the tenant is authorized. An error means
	// the check itself failed, not that the tenant is forbidden.
	Allowed(ctx context.Context, tenantID string) (bool, error)
}

// StaticGate authorizes tenants against a fixed allow-list from config.
type StaticGate struct {
	allowed map[string]struct{}
}

// NewStaticGate creates a gate from the configured tenant list.
func NewStaticGate(tenants []string) *StaticGate {
	allowed := make(map[string]struct{}, len(tenants))
	for _, t := range tenants {
		allowed[t] = struct{}{}
	}
	return &StaticGate{allowed: allowed}
}

// Allowed reports whether the tenant is on the allow-list.
func (g *StaticGate) Allowed(_ context.Context, tenantID string) (bool, error) {
	_, ok := g.allowed[tenantID]
	return ok, nil
}

// TenantChecker is the subset of the store the database gate needs.
type TenantChecker interface {
	IsTenantActive(ctx context.Context, teamID string) (bool, error)
}

// StoreGate authorizes tenants against the tenants table, so workspaces
// can be added and suspended at runtime via the admin CLI.
type StoreGate struct {
	store TenantChecker
}

// NewStoreGate creates a gate backed by the given store.
func NewStoreGate(store TenantChecker) *StoreGate {
	return &StoreGate{store: store}
}

// Allowed reports whether the tenant exists and is active.
func (g *StoreGate) Allowed(ctx context.Context, tenantID string) (bool, error) {
	active, err := g.store.IsTenantActive(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("checking tenant %s: %w", tenantID, err)
	}
	return active, nil
}
