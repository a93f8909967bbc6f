// ABOUTME: Store interface and data types for reggie-gateway persistence
// ABOUTME: Defines Tenant, RequestRecord structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// TenantStatus constants for tenant lifecycle
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant represents a workspace subscribed to the gateway
type Tenant struct {
	TeamID    string
	Name      string
	Status    string // "active" or "suspended"
	CreatedAt time.Time
}

// RequestOutcome constants for the request ledger
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
	OutcomeForbidden = "forbidden"
	OutcomeDuplicate = "duplicate"
)

// RequestRecord is one row in the request ledger, written when a request
// reaches a terminal outcome
type RequestRecord struct {
	ID             string
	TeamID         string
	UserID         string
	Kind           string // mention, direct_message, slash_command
	ConversationID string
	Outcome        string
	Detail         string // error text or empty
	CreatedAt      time.Time
}

// Store defines the interface for tenant and request ledger persistence
type Store interface {
	// Tenants
	UpsertTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, teamID string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	DeleteTenant(ctx context.Context, teamID string) error
	IsTenantActive(ctx context.Context, teamID string) (bool, error)

	// Request ledger
	SaveRequestRecord(ctx context.Context, rec *RequestRecord) error
	ListRequestRecords(ctx context.Context, teamID string, limit int) ([]*RequestRecord, error)

	Close() error
}
