package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItemInput struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPriceUSD decimal.Decimal `json:"unit_price_usd"`
}

type ServiceOrderRequest struct {
	StoreID          string           `json:"store_id"`
	CustomerName     string           `json:"customer_name" validate:"required" label:"Nombre Cliente"`
	CustomerID       string           `json:"customer_id" validate:"required" label:"Cédula / RIF"`
	CustomerPhone    string           `json:"customer_phone" validate:"required" label:"Teléfono"`
	DeliveryDate     string           `json:"delivery_date" validate:"required" label:"Fecha Estimada de Entrega"`
	Items            []OrderItemInput `json:"items" validate:"required,min=1" label:"Lista de Productos"`
	AssignedAgentID  string           `json:"assigned_agent_id" validate:"required" label:"Responsable Asignado"`
	InitialStatus    OrderStatus      `json:"initial_status,omitempty"`
	IssueDate        string           `json:"issue_date,omitempty"`
	PaymentMethod    PaymentMethod    `json:"payment_method,omitempty"`
	AbonoUSD         decimal.Decimal  `json:"abono_usd"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	TechnicalDetails string           `json:"technical_details,omitempty"`
	ReferenceImages  []string         `json:"reference_images,omitempty"`
}

type DirectSaleRequest struct {
	StoreID          string           `json:"store_id"`
	CustomerName     string           `json:"customer_name" validate:"required" label:"Nombre del Cliente"`
	CustomerID       string           `json:"customer_id" validate:"required" label:"Cédula / RIF"`
	CustomerPhone    string           `json:"customer_phone" validate:"required" label:"Teléfono"`
	Items            []OrderItemInput `json:"items" validate:"required,min=1" label:"Al menos un producto en la lista"`
	IssueDate        string           `json:"issue_date,omitempty"`
	PaymentMethod    PaymentMethod    `json:"payment_method,omitempty"`
	ReceivedUSD      decimal.Decimal  `json:"received_usd"`
	ReceivedBs       decimal.Decimal  `json:"received_bs"`
	PaymentReference string           `json:"payment_reference,omitempty"`
}

type DirectSaleResult struct {
	Order        Order           `json:"order"`
	PerceivedUSD decimal.Decimal `json:"perceived_usd"`
	ChangeUSD    decimal.Decimal `json:"change_usd"`
}

type GenderQuantity struct {
	Gender   string `json:"gender" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// SewingSpec is the production sheet sent to a sewing workshop.
type SewingSpec struct {
	ProductName string           `json:"product_name" validate:"required"`
	Genders     []GenderQuantity `json:"genders" validate:"required,min=1,dive"`
	Fabric      string           `json:"fabric" validate:"required"`
	Color       string           `json:"color" validate:"required"`
	Sizes       string           `json:"sizes" validate:"required"`
	Notes       string           `json:"notes,omitempty"`
}

func (s SewingSpec) TotalQuantity() int {
	total := 0
	for _, line := range s.Genders {
		total += line.Quantity
	}
	return total
}

type AssignWorkshopRequest struct {
	WorkshopID string      `json:"workshop_id"`
	Spec       *SewingSpec `json:"spec,omitempty"`
}

type AssignWorkshopResult struct {
	Order            Order  `json:"order"`
	SpecText         string `json:"spec_text,omitempty"`
	NotificationLink string `json:"notification_link,omitempty"`
}

type TransferRequest struct {
	Stage     OrderStatus `json:"stage"`
	AgentID   string      `json:"agent_id,omitempty"`
	Confirmed bool        `json:"confirmed"`
}

type PaymentRequest struct {
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Method    PaymentMethod   `json:"method"`
	Reference string          `json:"reference,omitempty"`
}

type DraftTextRequest struct {
	StoreID string `json:"store_id"`
	Text    string `json:"text"`
}

type DraftItem struct {
	Name        string          `json:"name"`
	Qty         int             `json:"qty"`
	SubtotalUSD decimal.Decimal `json:"subtotal_usd"`
}

// Draft is the untrusted order proposal returned by the drafting assistant.
type Draft struct {
	BCVRate        decimal.Decimal `json:"bcv_rate"`
	ItemsDetected  []DraftItem     `json:"items_detected"`
	TotalUSD       decimal.Decimal `json:"total_usd"`
	TotalBs        decimal.Decimal `json:"total_bs"`
	SuggestedReply string          `json:"suggested_reply"`
	CustomerName   string          `json:"customer_name"`
}

type AcceptDraftRequest struct {
	StoreID string `json:"store_id"`
	Draft   Draft  `json:"draft"`
}

type ProductRequest struct {
	StoreID                  string          `json:"store_id"`
	Name                     string          `json:"name"`
	PriceRetail              decimal.Decimal `json:"price_retail"`
	PriceWholesale           decimal.Decimal `json:"price_wholesale"`
	Material                 string          `json:"material"`
	Description              string          `json:"description"`
	AdditionalConsiderations string          `json:"additional_considerations,omitempty"`
	ImageURL                 string          `json:"image_url,omitempty"`
	Stock                    int             `json:"stock"`
	Category                 string          `json:"category"`
}

type SettingsUpdateRequest struct {
	BusinessName  *string            `json:"business_name,omitempty"`
	Slogan        *string            `json:"slogan,omitempty"`
	Instagram     *string            `json:"instagram,omitempty"`
	CompanyPhone  *string            `json:"company_phone,omitempty"`
	PreferredTone *string            `json:"preferred_tone,omitempty"`
	BCVRate       *decimal.Decimal   `json:"bcv_rate,omitempty"`
	CloudSync     *CloudSyncSettings `json:"cloud_sync,omitempty"`
	PagoMovil     *PagoMovil         `json:"pago_movil,omitempty"`
}

type BoardCard struct {
	Order    Order    `json:"order"`
	Actions  []string `json:"actions"`
	Urgent   bool     `json:"urgent"`
	Assignee string   `json:"assignee,omitempty"`
}

type BoardColumn struct {
	Stage OrderStatus `json:"stage"`
	Cards []BoardCard `json:"cards"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type SyncStatusResponse struct {
	Status   string     `json:"status"`
	LastSync *time.Time `json:"last_sync,omitempty"`
}
