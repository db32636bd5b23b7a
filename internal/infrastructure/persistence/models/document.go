package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the Document aggregate root.
type DocumentModel struct {
	CompanyAggregateModel
	Number            string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	Type              string     `gorm:"type:varchar(32);not null;index"`
	Status            string     `gorm:"type:varchar(16);not null;index"`
	FirmID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	WarehouseID       uuid.UUID  `gorm:"type:uuid;not null"`
	TargetWarehouseID *uuid.UUID `gorm:"type:uuid"`
	CounterpartyID    *uuid.UUID `gorm:"type:uuid"`
	SourceDocumentID  *uuid.UUID `gorm:"type:uuid;index"`
	VATMode           string     `gorm:"type:varchar(16);not null"`
	DocumentDate      time.Time  `gorm:"not null"`
	PostedAt          *time.Time
	Comment           string              `gorm:"type:text"`
	Lines             []DocumentLineModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document
func (m *DocumentModel) ToDomain() *document.Document {
	doc := &document.Document{
		Number:            m.Number,
		Type:              document.Type(m.Type),
		Status:            document.Status(m.Status),
		FirmID:            m.FirmID,
		WarehouseID:       m.WarehouseID,
		TargetWarehouseID: m.TargetWarehouseID,
		CounterpartyID:    m.CounterpartyID,
		SourceDocumentID:  m.SourceDocumentID,
		VATMode:           tax.Mode(m.VATMode),
		DocumentDate:      m.DocumentDate.UTC(),
		Comment:           m.Comment,
		Lines:             make([]document.LineItem, len(m.Lines)),
	}
	m.PopulateCompanyAggregateRoot(&doc.CompanyAggregateRoot)
	if m.PostedAt != nil {
		at := m.PostedAt.UTC()
		doc.PostedAt = &at
	}
	for i := range m.Lines {
		doc.Lines[i] = m.Lines[i].ToDomain()
	}
	return doc
}

// FromDomain populates the persistence model from a domain Document
func (m *DocumentModel) FromDomain(d *document.Document) {
	m.FromDomainCompanyAggregateRoot(d.CompanyAggregateRoot)
	m.Number = d.Number
	m.Type = d.Type.String()
	m.Status = d.Status.String()
	m.FirmID = d.FirmID
	m.WarehouseID = d.WarehouseID
	m.TargetWarehouseID = d.TargetWarehouseID
	m.CounterpartyID = d.CounterpartyID
	m.SourceDocumentID = d.SourceDocumentID
	m.VATMode = string(d.VATMode)
	m.DocumentDate = d.DocumentDate
	m.PostedAt = d.PostedAt
	m.Comment = d.Comment
	m.Lines = make([]DocumentLineModel, len(d.Lines))
	for i := range d.Lines {
		m.Lines[i] = *DocumentLineModelFromDomain(d.ID, &d.Lines[i])
	}
}

// DocumentModelFromDomain creates a persistence model from a domain Document
func DocumentModelFromDomain(d *document.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// DocumentLineModel is one line of a document
type DocumentLineModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	DocumentID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	LineNo            int              `gorm:"not null"`
	ProductID         uuid.UUID        `gorm:"type:uuid;not null;index"`
	Quantity          decimal.Decimal  `gorm:"type:numeric(20,4);not null"`
	Unit              string           `gorm:"type:varchar(32)"`
	UnitPrice         decimal.Decimal  `gorm:"type:numeric(24,8);not null"`
	VATPercent        *decimal.Decimal `gorm:"type:numeric(7,4)"`
	Role              string           `gorm:"type:varchar(16);not null"`
	ConvertedQuantity decimal.Decimal  `gorm:"type:numeric(20,4);not null"`
	PriceWithoutVAT   decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	VATAmount         decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	PriceWithVAT      decimal.Decimal  `gorm:"type:numeric(20,2);not null"`
	EffectiveVAT      decimal.Decimal  `gorm:"type:numeric(7,4);not null"`
}

// TableName returns the table name for GORM
func (DocumentLineModel) TableName() string {
	return "document_lines"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *DocumentLineModel) ToDomain() document.LineItem {
	return document.LineItem{
		ID:                m.ID,
		DocumentID:        m.DocumentID,
		LineNo:            m.LineNo,
		ProductID:         m.ProductID,
		Quantity:          m.Quantity,
		Unit:              m.Unit,
		UnitPrice:         m.UnitPrice,
		VATPercent:        m.VATPercent,
		Role:              document.Role(m.Role),
		ConvertedQuantity: m.ConvertedQuantity,
		PriceWithoutVAT:   m.PriceWithoutVAT,
		VATAmount:         m.VATAmount,
		PriceWithVAT:      m.PriceWithVAT,
		EffectiveVAT:      m.EffectiveVAT,
	}
}

// DocumentLineModelFromDomain creates a persistence model from a domain LineItem
func DocumentLineModelFromDomain(documentID uuid.UUID, l *document.LineItem) *DocumentLineModel {
	return &DocumentLineModel{
		ID:                l.ID,
		DocumentID:        documentID,
		LineNo:            l.LineNo,
		ProductID:         l.ProductID,
		Quantity:          l.Quantity,
		Unit:              l.Unit,
		UnitPrice:         l.UnitPrice,
		VATPercent:        l.VATPercent,
		Role:              string(l.Role),
		ConvertedQuantity: l.ConvertedQuantity,
		PriceWithoutVAT:   l.PriceWithoutVAT,
		VATAmount:         l.VATAmount,
		PriceWithVAT:      l.PriceWithVAT,
		EffectiveVAT:      l.EffectiveVAT,
	}
}
