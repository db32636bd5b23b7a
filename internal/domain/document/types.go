// Package document holds the document aggregate whose posting turns draft
// lines into ledger operations.
package document

// Type enumerates the document kinds the posting engine understands
type Type string

const (
	TypeReceipt          Type = "receipt"
	TypeSale             Type = "sale"
	TypeTransfer         Type = "transfer"
	TypeReturnToSupplier Type = "return_to_supplier"
	TypeReturnFromClient Type = "return_from_client"
	TypeInventory        Type = "inventory"
	TypeConversion       Type = "conversion"
	TypeStockIn          Type = "stock_in"
)

// AllTypes lists every document type
var AllTypes = []Type{
	TypeReceipt,
	TypeSale,
	TypeTransfer,
	TypeReturnToSupplier,
	TypeReturnFromClient,
	TypeInventory,
	TypeConversion,
	TypeStockIn,
}

// String returns the string representation of Type
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the type is known
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresSource returns true for types that must reference a source document
func (t Type) RequiresSource() bool {
	return t == TypeReturnToSupplier || t == TypeReturnFromClient
}

// SourceType returns the type a source document must have
func (t Type) SourceType() (Type, bool) {
	switch t {
	case TypeReturnToSupplier:
		return TypeReceipt, true
	case TypeReturnFromClient:
		return TypeSale, true
	}
	return "", false
}

// Status of a document. There are only two.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusPosted
}

// Role discriminates conversion lines
type Role string

const (
	RoleNone   Role = ""
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	return r == RoleNone || r == RoleSource || r == RoleTarget
}
