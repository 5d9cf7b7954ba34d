package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperror "gocommerce/internal/errors"
)

// OrderStatus representa o estado de um pedido no seu ciclo de vida.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid verifica se o valor corresponde a um status conhecido.
// Usado na validação do filtro de busca por status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPaid, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// LineItem é uma linha de pedido. Preço e nome do produto são *cópias*
// tiradas no momento da inserção: mudanças posteriores no catálogo nunca
// alteram o total histórico de um pedido. A compatibilidade de métrica é
// checada uma única vez na criação e então congelada.
type LineItem struct {
	ID          string   `json:"id"`
	ProductID   string   `json:"product_id"`
	Quantity    Quantity `json:"quantity"`
	UnitPrice   float64  `json:"unit_price"`   // Snapshot do preço unitário do produto
	ProductName string   `json:"product_name"` // Snapshot do nome do produto
}

// NewLineItem cria uma linha de pedido a partir de um produto do catálogo.
// Falha com MetricMismatch se a quantidade não for compatível com a métrica
// do produto.
func NewLineItem(product Product, quantity Quantity) (LineItem, error) {
	if !product.Supports(quantity) {
		return LineItem{}, apperror.NewMetricMismatchError(fmt.Sprintf(
			"o produto %s (%s) não suporta a quantidade %s", product.Name, product.Metric, quantity))
	}

	return LineItem{
		ID:          uuid.New().String(),
		ProductID:   product.ID,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		ProductName: product.Name,
	}, nil
}

// Total retorna o valor total da linha (preço snapshot x quantidade).
func (l LineItem) Total() float64 {
	return decimal.NewFromFloat(l.UnitPrice).Mul(l.Quantity.Amount).InexactFloat64()
}

// Order é o agregado de pedido: captura os produtos pedidos por um cliente,
// suas quantidades e a máquina de estados do ciclo de vida.
//
// Transições: OPEN → PAID → COMPLETED, monotônicas; CANCELLED é terminal e
// alcançável de qualquer estado não-cancelado. Linhas só podem ser
// adicionadas/removidas enquanto OPEN.
type Order struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customer_id"`
	Status     OrderStatus `json:"status"`
	LineItems  []LineItem  `json:"line_items"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	// Buffer de eventos do agregado (ver InventoryItem.events).
	events []Event
}

// NewOrder cria um novo pedido OPEN para o cliente informado.
func NewOrder(customerID string) (Order, error) {
	if customerID == "" {
		return Order{}, apperror.NewValidationError("O pedido requer um cliente.")
	}

	now := time.Now().UTC()
	return Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     OrderStatusOpen,
		LineItems:  make([]LineItem, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// --- Predicados de conveniência (espelham o vocabulário do domínio) ---

// IsOpen indica se o pedido está OPEN.
func (o *Order) IsOpen() bool { return o.Status == OrderStatusOpen }

// IsPaid indica se o pedido está PAID.
func (o *Order) IsPaid() bool { return o.Status == OrderStatusPaid }

// IsCompleted indica se o pedido está COMPLETED.
func (o *Order) IsCompleted() bool { return o.Status == OrderStatusCompleted }

// IsCanceled indica se o pedido está CANCELLED.
func (o *Order) IsCanceled() bool { return o.Status == OrderStatusCancelled }

// --- Manipulação de linhas (somente enquanto OPEN) ---

// AddLine adiciona uma linha para o produto com a quantidade informada.
// Permitido apenas enquanto o pedido está OPEN.
func (o *Order) AddLine(product Product, quantity Quantity) (LineItem, error) {
	if err := o.assertIsOpen(); err != nil {
		return LineItem{}, err
	}

	line, err := NewLineItem(product, quantity)
	if err != nil {
		return LineItem{}, err
	}

	o.LineItems = append(o.LineItems, line)
	o.UpdatedAt = time.Now().UTC()

	return line, nil
}

// RemoveLine remove a linha com o ID informado. Permitido apenas enquanto OPEN.
func (o *Order) RemoveLine(lineItemID string) error {
	if err := o.assertIsOpen(); err != nil {
		return err
	}

	for idx, line := range o.LineItems {
		if line.ID == lineItemID {
			o.LineItems = append(o.LineItems[:idx], o.LineItems[idx+1:]...)
			o.UpdatedAt = time.Now().UTC()
			return nil
		}
	}

	return apperror.NewNotFoundError(fmt.Sprintf("Linha %s não existe no pedido %s.", lineItemID, o.ID))
}

// Total retorna o valor total do pedido (soma dos snapshots das linhas).
func (o *Order) Total() float64 {
	var total float64
	for _, line := range o.LineItems {
		total += line.Total()
	}
	return total
}

// --- Máquina de estados ---

// MarkPaid transiciona OPEN → PAID e registra OrderPaid.
// Falha se o pedido já estiver PAID ou além.
func (o *Order) MarkPaid() error {
	if !o.IsOpen() {
		return apperror.NewStateTransitionError(fmt.Sprintf(
			"o pedido %s não pode ser pago no estado %s", o.ID, o.Status))
	}

	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now().UTC()
	o.RegisterEvent(NewOrderPaid(o.ID, o.CustomerID))

	return nil
}

// Complete transiciona PAID → COMPLETED e registra OrderCompleted.
// Falha a menos que o pedido esteja PAID.
func (o *Order) Complete() error {
	if !o.IsPaid() {
		return apperror.NewStateTransitionError(fmt.Sprintf(
			"o pedido %s precisa estar PAID para ser concluído (estado atual: %s)", o.ID, o.Status))
	}

	o.Status = OrderStatusCompleted
	o.UpdatedAt = time.Now().UTC()
	o.RegisterEvent(NewOrderCompleted(o.ID, o.CustomerID))

	return nil
}

// Cancel transiciona para CANCELLED com o motivo informado.
// Falha se o pedido já estiver cancelado. Se ainda não estiver COMPLETED,
// sintetiza primeiro um OrderCompleted; assim a compensação de inventário
// a jusante sempre tem um evento de conclusão para reagir, mesmo para
// pedidos cancelados antes de concluir.
func (o *Order) Cancel(reason string) error {
	if o.IsCanceled() {
		return apperror.NewStateTransitionError(fmt.Sprintf("o pedido %s já está cancelado", o.ID))
	}

	wasCompleted := o.IsCompleted()
	if !wasCompleted {
		o.RegisterEvent(NewOrderCompleted(o.ID, o.CustomerID))
	}

	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now().UTC()
	o.RegisterEvent(NewOrderCanceled(o.ID, o.CustomerID, reason, wasCompleted))

	return nil
}

// assertIsOpen garante que o pedido está OPEN, pré-condição para manipular linhas.
func (o *Order) assertIsOpen() error {
	if !o.IsOpen() {
		return apperror.NewStateTransitionError(fmt.Sprintf(
			"o pedido %s não está mais aberto (estado atual: %s)", o.ID, o.Status))
	}
	return nil
}

// --- Buffer de eventos do agregado ---

// RegisterEvent adiciona um evento ao buffer do agregado.
func (o *Order) RegisterEvent(event Event) {
	o.events = append(o.events, event)
}

// PendingEvents retorna os eventos ainda não drenados para o outbox.
func (o *Order) PendingEvents() []Event {
	return o.events
}

// ClearEvents limpa o buffer após os eventos serem gravados no outbox.
func (o *Order) ClearEvents() {
	o.events = nil
}
