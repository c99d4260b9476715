package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending     OrderStatus = "pendiente"
	StatusDesign      OrderStatus = "diseño"
	StatusPrinting    OrderStatus = "impresión"
	StatusWorkshop    OrderStatus = "taller"
	StatusEmbroidery  OrderStatus = "bordado"
	StatusSublimation OrderStatus = "sublimación"
	StatusCompleted   OrderStatus = "completado"
)

// Stages lists the department stages in board order.
var Stages = []OrderStatus{
	StatusPending,
	StatusDesign,
	StatusPrinting,
	StatusWorkshop,
	StatusEmbroidery,
	StatusSublimation,
	StatusCompleted,
}

func (s OrderStatus) Valid() bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	TaskWaiting            TaskStatus = "esperando"
	TaskInProgress         TaskStatus = "proceso"
	TaskDone               TaskStatus = "terminado"
	TaskExternalProduction TaskStatus = "confeccion"
)

type PaymentMethod string

const (
	PaymentCashUSD      PaymentMethod = "DOLARES $"
	PaymentMobile       PaymentMethod = "PAGO MOVIL"
	PaymentBankTransfer PaymentMethod = "TRANSFERENCIA"
	PaymentCashBs       PaymentMethod = "EFECTIVO"
	PaymentCardTerminal PaymentMethod = "PUNTO DE VENTA"
	PaymentBiometric    PaymentMethod = "BIOPAGO"
)

const DefaultPaymentMethod = PaymentCashUSD

// PaymentMethods lists every accepted method in cash closing order.
var PaymentMethods = []PaymentMethod{
	PaymentCashUSD,
	PaymentMobile,
	PaymentBankTransfer,
	PaymentCashBs,
	PaymentCardTerminal,
	PaymentBiometric,
}

func (m PaymentMethod) Valid() bool {
	for _, method := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

type Department string

const (
	DepartmentSewing      Department = "COSTURA"
	DepartmentDTF         Department = "DTF"
	DepartmentLargeFormat Department = "GIGANTOGRAFIA"
	DepartmentBooklets    Department = "TALONARIOS"
	DepartmentOther       Department = "OTRO"
)

func (d Department) Valid() bool {
	switch d {
	case DepartmentSewing, DepartmentDTF, DepartmentLargeFormat, DepartmentBooklets, DepartmentOther:
		return true
	}
	return false
}

const (
	ProductCategoryGood    = "producto"
	ProductCategoryService = "servicio"
	ProductScopeGlobal     = "global"
)

type Store struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Location             string `json:"location"`
	Prefix               string `json:"prefix"`
	NextOrderNumber      int    `json:"next_order_number"`
	NextDirectSaleNumber int    `json:"next_direct_sale_number"`
}

type Product struct {
	ID                       string          `json:"id"`
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

// VisibleIn reports whether the product is offered by the given store.
func (p Product) VisibleIn(storeID string) bool {
	return p.StoreID == ProductScopeGlobal || p.StoreID == "" || storeID == "" || p.StoreID == storeID
}

type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	StoreID   string `json:"store_id"`
	Specialty string `json:"specialty,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Workshop struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Department       Department `json:"department"`
	CustomDepartment string     `json:"custom_department,omitempty"`
	Phone            string     `json:"phone"`
	StoreID          string     `json:"store_id"`
}

// DepartmentLabel is the department as shown to staff, using the custom
// label for OTRO workshops.
func (w Workshop) DepartmentLabel() string {
	if w.Department == DepartmentOther && w.CustomDepartment != "" {
		return w.CustomDepartment
	}
	return string(w.Department)
}

type OrderItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPriceUSD decimal.Decimal `json:"unit_price_usd"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPriceUSD.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type HistoryEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	ActorID   string      `json:"actor_id"`
	Action    string      `json:"action"`
	Status    OrderStatus `json:"status"`
}

type PaymentEvent struct {
	At        time.Time       `json:"at"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Method    PaymentMethod   `json:"method"`
	Reference string          `json:"reference,omitempty"`
	Initial   bool            `json:"initial,omitempty"`
}

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"order_number"`
	StoreID            string          `json:"store_id"`
	CustomerName       string          `json:"customer_name"`
	CustomerID         string          `json:"customer_id"`
	CustomerPhone      string          `json:"customer_phone"`
	Items              []OrderItem     `json:"items"`
	TotalUSD           decimal.Decimal `json:"total_usd"`
	TotalBs            decimal.Decimal `json:"total_bs"`
	AbonoUSD           decimal.Decimal `json:"abono_usd"`
	RestanteUSD        decimal.Decimal `json:"restante_usd"`
	Status             OrderStatus     `json:"status"`
	TaskStatus         TaskStatus      `json:"task_status"`
	History            []HistoryEntry  `json:"history"`
	Payments           []PaymentEvent  `json:"payments,omitempty"`
	BCVRate            decimal.Decimal `json:"bcv_rate"`
	IssueDate          string          `json:"issue_date"`
	DeliveryDate       string          `json:"delivery_date"`
	TechnicalDetails   string          `json:"technical_details,omitempty"`
	ReferenceImages    []string        `json:"reference_images,omitempty"`
	AssignedAgentID    string          `json:"assigned_agent_id,omitempty"`
	AssignedWorkshopID string          `json:"assigned_workshop_id,omitempty"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	IsDirectSale       bool            `json:"is_direct_sale,omitempty"`
	IsDelivered        bool            `json:"is_delivered,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type CloudSyncSettings struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider"`
	APIURL   string `json:"api_url"`
	APIKey   string `json:"api_key"`
}

type PagoMovil struct {
	Bank     string `json:"bank"`
	IDNumber string `json:"id_number"`
	Phone    string `json:"phone"`
}

type Settings struct {
	BusinessName  string            `json:"business_name"`
	Slogan        string            `json:"slogan"`
	Instagram     string            `json:"instagram"`
	CompanyPhone  string            `json:"company_phone,omitempty"`
	PreferredTone string            `json:"preferred_tone"`
	BCVRate       decimal.Decimal   `json:"bcv_rate"`
	LogoURL       string            `json:"logo_url,omitempty"`
	EncryptionKey string            `json:"encryption_key"`
	LoginPINHash  string            `json:"login_pin_hash,omitempty"`
	MasterPINHash string            `json:"master_pin_hash,omitempty"`
	CloudSync     CloudSyncSettings `json:"cloud_sync"`
	PagoMovil     *PagoMovil        `json:"pago_movil,omitempty"`
}

// Public strips the secrets that never leave the process.
func (s Settings) Public() Settings {
	s.EncryptionKey = ""
	s.LoginPINHash = ""
	s.MasterPINHash = ""
	s.CloudSync.APIKey = ""
	return s
}

// Snapshot is the full serializable state handed to sync and backup.
type Snapshot struct {
	Products  []Product  `json:"products"`
	Orders    []Order    `json:"orders"`
	Agents    []Agent    `json:"agents"`
	Workshops []Workshop `json:"workshops"`
	Stores    []Store    `json:"stores"`
	Settings  Settings   `json:"settings"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)
