package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/pos_terminal/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// Cached catalog rows are server-origin reference data keyed by the stable
// server-assigned id. The terminal treats them as disposable cache: the
// bootstrap synchronizer is the only writer, and wiping the tables followed
// by a re-bootstrap is always safe because pending transactions denormalize
// whatever catalog data they need at creation time.

type CachedSetting struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Key        string    `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Value      string    `gorm:"type:text" json:"value"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type CachedCategory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ServerId   string    `gorm:"size:64;uniqueIndex;not null" json:"server_id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	SortOrder  int       `gorm:"default:0" json:"sort_order"`
	Active     *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type CachedProduct struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ServerId         string          `gorm:"size:64;uniqueIndex;not null" json:"server_id"`
	BusinessId       string          `gorm:"index;not null" json:"business_id"`
	CategoryServerId string          `gorm:"size:64;index" json:"category_server_id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	Sku              string          `gorm:"size:100;index" json:"sku"`
	Barcode          string          `gorm:"size:100;index" json:"barcode"`
	SalesPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_rate"`
	Active           *bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type CachedDiningTable struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ServerId   string    `gorm:"size:64;uniqueIndex;not null" json:"server_id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Seats      int       `gorm:"default:0" json:"seats"`
	Active     *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertSettings replaces setting values keyed by setting key. Re-applying an
// identical snapshot is a no-op row-for-row.
func UpsertSettings(ctx context.Context, settings []CachedSetting) error {
	if len(settings) == 0 {
		return nil
	}
	db := config.GetDB().WithContext(ctx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "business_id", "updated_at"}),
	}).Create(&settings).Error
}

func UpsertCategories(ctx context.Context, categories []CachedCategory) error {
	if len(categories) == 0 {
		return nil
	}
	db := config.GetDB().WithContext(ctx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "server_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"business_id", "name", "sort_order", "active", "updated_at"}),
	}).Create(&categories).Error
}

func UpsertProducts(ctx context.Context, products []CachedProduct) error {
	if len(products) == 0 {
		return nil
	}
	db := config.GetDB().WithContext(ctx)
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "server_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"business_id", "category_server_id", "name", "sku", "barcode",
			"sales_price", "tax_rate", "active", "updated_at",
		}),
	}).Create(&products).Error
}

func UpsertDiningTables(ctx context.Context, tables []CachedDiningTable) error {
	if len(tables) == 0 {
		return nil
	}
	db := config.GetDB().WithContext(ctx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "server_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"business_id", "name", "seats", "active", "updated_at"}),
	}).Create(&tables).Error
}

func GetCachedProductByServerId(ctx context.Context, serverId string) (*CachedProduct, error) {
	var product CachedProduct
	if err := config.GetDB().WithContext(ctx).Where("server_id = ?", serverId).Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func CountCatalogItems(ctx context.Context) (map[string]int64, error) {
	db := config.GetDB().WithContext(ctx)
	counts := map[string]int64{}
	pairs := []struct {
		entityType string
		model      any
	}{
		{EntityTypeSetting, &CachedSetting{}},
		{EntityTypeCategory, &CachedCategory{}},
		{EntityTypeProduct, &CachedProduct{}},
		{EntityTypeTable, &CachedDiningTable{}},
	}
	for _, pair := range pairs {
		var n int64
		if err := db.Model(pair.model).Count(&n).Error; err != nil {
			return nil, err
		}
		counts[pair.entityType] = n
	}
	return counts, nil
}
