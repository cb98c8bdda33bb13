package core

import (
	"context"
	"time"
)

// =============================================================================
// IOC Reference Data
// =============================================================================

// IOCType is a registry row describing an indicator kind ("ip", "domain", ...).
// The registry is seeded at storage init; every IOC must reference an
// existing type code.
type IOCType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tlp is a traffic-light-protocol marking usable on IOCs.
type Tlp struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Default IOC type registry, seeded on first start.
var DefaultIOCTypes = []IOCType{
	{ID: 1, Name: "ip", Description: "IPv4 or IPv6 address"},
	{ID: 2, Name: "domain", Description: "Fully qualified domain name"},
	{ID: 3, Name: "url", Description: "Full URL"},
	{ID: 4, Name: "hash", Description: "File hash (MD5/SHA1/SHA256/SHA512)"},
	{ID: 5, Name: "email", Description: "Email address"},
	{ID: 6, Name: "filename", Description: "File name"},
	{ID: 7, Name: "registry_key", Description: "Windows registry key"},
	{ID: 8, Name: "account", Description: "User account name"},
	{ID: 9, Name: "other", Description: "Anything else"},
}

// Default TLP registry, seeded on first start.
var DefaultTlps = []Tlp{
	{ID: 1, Name: "clear"},
	{ID: 2, Name: "green"},
	{ID: 3, Name: "amber"},
	{ID: 4, Name: "amber+strict"},
	{ID: 5, Name: "red"},
}

// Maximum lengths for IOC fields.
const (
	MaxIOCValueLength       = 4096
	MaxIOCDescriptionLength = 2000
	MaxIOCTagLength         = 100
	MaxIOCTagCount          = 50
)

// =============================================================================
// IOC Struct
// =============================================================================

// IOC is an indicator of compromise scoped to exactly one case.
// CaseID is immutable once created.
type IOC struct {
	ID          string    `json:"id"`
	UUID        string    `json:"uuid"`
	CaseID      string    `json:"case_id"`
	Value       string    `json:"value"`
	TypeID      int64     `json:"type_id"`
	TypeName    string    `json:"type_name,omitempty"` // Denormalized for display
	TlpID       *int64    `json:"tlp_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// =============================================================================
// IOC Requests and Filters
// =============================================================================

// IOCCreateRequest is the proposed input for adding an IOC to a case.
type IOCCreateRequest struct {
	Value       string   `json:"value" validate:"required,max=4096"`
	TypeID      int64    `json:"type_id" validate:"required,gt=0"`
	TlpID       *int64   `json:"tlp_id" validate:"omitempty,gt=0"`
	Description string   `json:"description" validate:"max=2000"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=100"`
}

// IOCUpdateRequest carries partial fields merged onto an existing IOC.
type IOCUpdateRequest struct {
	Value       *string   `json:"value" validate:"omitempty,min=1,max=4096"`
	TypeID      *int64    `json:"type_id" validate:"omitempty,gt=0"`
	TlpID       *int64    `json:"tlp_id" validate:"omitempty,gt=0"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=50,dive,max=100"`
}

// IOCFilters defines the independent-AND predicate set for listing IOCs
// within one case. Zero-valued fields impose no constraint.
type IOCFilters struct {
	Value       string
	TypeID      int64
	TlpID       int64
	Description string
	Tag         string
	Pagination
}

// IOCStorage defines the persistence port for IOCs and their reference data.
type IOCStorage interface {
	CreateIOC(ctx context.Context, ioc *IOC) error
	GetIOC(ctx context.Context, id string) (*IOC, error)
	UpdateIOC(ctx context.Context, ioc *IOC) error
	DeleteIOC(ctx context.Context, id string) error
	ListIOCs(ctx context.Context, caseID string, filters *IOCFilters) ([]*IOC, int64, error)
	CountIOCsByCase(ctx context.Context, caseID string) (int64, error)

	// Reference data
	IOCTypeExists(ctx context.Context, typeID int64) (bool, error)
	TlpExists(ctx context.Context, tlpID int64) (bool, error)
	ListIOCTypes(ctx context.Context) ([]IOCType, error)
}
