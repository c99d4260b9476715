package store

import (
	"github.com/shopspring/decimal"

	"roxtor/backend/internal/domain"
)

// Seed is the dataset a fresh node starts from.
func Seed() domain.Snapshot {
	return domain.Snapshot{
		Stores: []domain.Store{
			{ID: "store_1", Name: "ROXTOR PRINCIPAL", Location: "Puerto Ordaz", Prefix: "P", NextOrderNumber: 1, NextDirectSaleNumber: 1},
			{ID: "store_2", Name: "ROXTOR CENTRO", Location: "Centro PZO", Prefix: "C", NextOrderNumber: 1, NextDirectSaleNumber: 1},
		},
		Products: []domain.Product{
			{
				ID:             "p1",
				StoreID:        domain.ProductScopeGlobal,
				Name:           "FRANELA MICRODURAZNO",
				PriceRetail:    decimal.NewFromInt(8),
				PriceWholesale: decimal.RequireFromString("5.5"),
				Material:       "MICRODURAZNO",
				Description:    "FRANELA CUELLO REDONDO PARA SUBLIMACIÓN",
				Stock:          100,
				Category:       domain.ProductCategoryGood,
			},
			{
				ID:             "p2",
				StoreID:        domain.ProductScopeGlobal,
				Name:           "GORRA TRUCKER",
				PriceRetail:    decimal.NewFromInt(12),
				PriceWholesale: decimal.NewFromInt(8),
				Material:       "MALLA Y ESPUMA",
				Description:    "GORRA AJUSTABLE CON MALLA TRASERA",
				Stock:          50,
				Category:       domain.ProductCategoryGood,
			},
			{
				ID:             "p3",
				StoreID:        domain.ProductScopeGlobal,
				Name:           "SERVICIO BORDADO",
				PriceRetail:    decimal.NewFromInt(5),
				PriceWholesale: decimal.NewFromInt(3),
				Description:    "BORDADO DE LOGO HASTA 10CM",
				Category:       domain.ProductCategoryService,
			},
		},
		Agents: []domain.Agent{
			{ID: "a1", Name: "ALEJANDRO", Role: "DISEÑADOR", StoreID: "store_1", Specialty: "DISEÑO"},
			{ID: "a2", Name: "EMIRIUSKA", Role: "VENTAS", StoreID: "store_1", Specialty: "ATENCIÓN"},
		},
		Workshops: []domain.Workshop{
			{ID: "w1", Name: "TALLER DOÑA JUANA", Department: domain.DepartmentSewing, Phone: "4141234567", StoreID: "store_1"},
			{ID: "w2", Name: "ESTAMPADOS RAPID-ZAP", Department: domain.DepartmentDTF, Phone: "4249876543", StoreID: "store_1"},
		},
		Settings: domain.Settings{
			BusinessName:  "ROXTOR",
			Slogan:        "Soluciones Creativas",
			Instagram:     "@roxtor.pzo",
			PreferredTone: "amigable",
			BCVRate:       decimal.RequireFromString("36.5"),
			EncryptionKey: "ROXTOR-LOCAL",
		},
	}
}
