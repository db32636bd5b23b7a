// Package models contains the GORM persistence models of the ledger. Domain
// types carry no ORM tags; each model here maps one table and converts to
// and from its domain type.
//
// Decimal columns are sized so that values round-trip exactly through both
// postgres numeric and the sqlite driver used in tests:
//   - quantities numeric(20,4)
//   - cost and sale prices numeric(24,8)
//   - money amounts numeric(20,2)
package models
