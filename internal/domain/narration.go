package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// History narration. The wording is stored in order history and read back by
// cash closing for orders without a payment ledger, so it must stay stable.
const (
	CreationMarker = "Orden generada"

	NarrationTaskReceived      = "Agente recibió tarea (Iniciado)"
	NarrationTaskCompleted     = "Tarea cumplida (Esperando transferencia)"
	NarrationTaskReset         = "Tarea reiniciada a espera"
	NarrationWorkshopReturned  = "Pedido recibido de taller (Confección OK)"
	NarrationFinished          = "Orden finalizada y lista para retiro"
	NarrationDelivered         = "Pedido entregado al cliente"
	NarrationDraftCreated      = "Creación vía Radar AI"
	NarrationUnassigned        = "Sin asignar"
	DraftTechnicalDetails      = "Importado vía Radar AI"
	DirectSaleTechnicalDetails = "VENTA DIRECTA AL INSTANTE"
)

func NarrateCreated(status OrderStatus, abono decimal.Decimal, reference string) string {
	return fmt.Sprintf("%s y enviada a %s. Abono inicial: $%s. Ref: %s", CreationMarker, status, abono.String(), reference)
}

func NarrateDirectSale(perceived decimal.Decimal, change decimal.Decimal, reference string) string {
	return fmt.Sprintf("Venta Directa Procesada. Percibido: $%s. Vuelto: $%s. Ref: %s", perceived.StringFixed(2), change.StringFixed(2), reference)
}

func NarratePayment(amount decimal.Decimal, method PaymentMethod, reference string) string {
	return fmt.Sprintf("Cobro: $%s vía %s. Ref: %s", amount.String(), method, reference)
}

func NarrateSentToWorkshop(workshop string, garments int) string {
	return fmt.Sprintf("Enviado a taller: %s (%d prendas). En espera de retorno.", workshop, garments)
}

func NarrateAssignedToWorkshop(workshop string, department string) string {
	return fmt.Sprintf("Asignado a taller: %s (%s)", workshop, department)
}

func NarrateTransfer(stage OrderStatus, agentName string) string {
	if strings.TrimSpace(agentName) == "" {
		agentName = NarrationUnassigned
	}
	return fmt.Sprintf("Transferido a %s - Responsable: %s", strings.ToUpper(string(stage)), agentName)
}
