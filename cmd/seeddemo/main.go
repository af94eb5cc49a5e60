// cmd/seeddemo creates a demo tenant: one table, a kitchen and a bar
// category, a recipe-tracked pizza and a stock-tracked lassi.
// Usage: go run ./cmd/seeddemo
package main

import (
	"fmt"
	"os"

	"restopos/internal/config"
	"restopos/internal/infra"
	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}

	tenantID := uuid.New()
	if v := os.Getenv("DEMO_TENANT_ID"); v != "" {
		if tenantID, err = uuid.Parse(v); err != nil {
			log.Fatal().Err(err).Msg("DEMO_TENANT_ID must be a UUID")
		}
	}

	var table model.Table
	var pizza, lassi model.Item
	err = db.Transaction(func(tx *gorm.DB) error {
		zone := model.Zone{TenantID: tenantID, Name: "Indoor"}
		if err := tx.Create(&zone).Error; err != nil {
			return err
		}
		table = model.Table{TenantID: tenantID, ZoneID: &zone.ID, Number: "T1", Capacity: 4, Status: model.TableAvailable}
		if err := tx.Create(&table).Error; err != nil {
			return err
		}

		kitchen := model.Category{TenantID: tenantID, Name: "Mains", IsKitchen: true}
		bar := model.Category{TenantID: tenantID, Name: "Drinks", IsBar: true}
		if err := tx.Create(&kitchen).Error; err != nil {
			return err
		}
		if err := tx.Create(&bar).Error; err != nil {
			return err
		}

		cheese := model.Ingredient{
			TenantID: tenantID, Name: "Cheese", Unit: "unit",
			CurrentStock: decimal.NewFromInt(10), MinStock: decimal.NewFromInt(2),
		}
		if err := tx.Create(&cheese).Error; err != nil {
			return err
		}

		pizza = model.Item{TenantID: tenantID, CategoryID: &kitchen.ID, Name: "Pizza", BasePrice: decimal.NewFromInt(50), IsAvailable: true}
		lassi = model.Item{
			TenantID: tenantID, CategoryID: &bar.ID, Name: "Lassi", BasePrice: decimal.NewFromInt(18),
			IsAvailable: true, MaintainStock: true, CurrentStock: 20, LowStockThreshold: 5,
		}
		if err := tx.Create(&pizza).Error; err != nil {
			return err
		}
		if err := tx.Create(&lassi).Error; err != nil {
			return err
		}
		large := model.ItemVariant{TenantID: tenantID, ItemID: pizza.ID, Name: "Large", PriceDelta: decimal.NewFromInt(10)}
		if err := tx.Create(&large).Error; err != nil {
			return err
		}
		return tx.Create(&model.Recipe{
			TenantID: tenantID, ItemID: pizza.ID, IngredientID: cheese.ID, Quantity: decimal.NewFromInt(2),
		}).Error
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	fmt.Printf("tenant_id: %s\n", tenantID)
	fmt.Printf("table T1:  id=%s qr_token=%s\n", table.ID, table.QRToken)
	fmt.Printf("pizza:     %s\n", pizza.ID)
	fmt.Printf("lassi:     %s\n", lassi.ID)
}
