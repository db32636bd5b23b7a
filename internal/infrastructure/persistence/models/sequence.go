package models

// DocumentSequenceModel holds the last number issued per document type
type DocumentSequenceModel struct {
	DocType   string `gorm:"type:varchar(32);primaryKey"`
	LastValue int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// All lists every model in dependency order. It feeds AutoMigrate for
// sqlite; postgres schemas come from the SQL migrations.
func All() []any {
	return []any{
		&CompanyModel{},
		&FirmModel{},
		&WarehouseModel{},
		&ProductModel{},
		&ProductUnitModel{},
		&ProductPriceModel{},
		&DocumentModel{},
		&DocumentLineModel{},
		&OperationModel{},
		&DocumentSequenceModel{},
	}
}
