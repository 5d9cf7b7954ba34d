package domain

import (
	"time"
)

// Event é o contrato mínimo de um evento de domínio publicado pelo outbox.
// Os eventos são registros imutáveis: carregam apenas identificadores e
// valores copiados, nunca referências a agregados mutáveis. Os assinantes
// re-leem os agregados via repositório quando precisam do estado atual.
type Event interface {
	EventName() string     // Nome estável do evento (chave de assinatura no dispatcher)
	EventAggregateID() string // Identificador do agregado que originou o evento
	EventOccurredAt() time.Time
}

// Nomes estáveis dos eventos. Usados como chave de assinatura e
// persistidos na tabela event_outbox.
const (
	EventProductAdded       = "product.added"
	EventInventoryItemAdded = "inventory.item_added"
	EventQuantityReduced    = "inventory.quantity_reduced"
	EventStockShort         = "inventory.stock_short"
	EventOrderPaid          = "order.paid"
	EventOrderCompleted     = "order.completed"
	EventOrderCanceled      = "order.canceled"
)

// baseEvent carrega os campos comuns a todos os eventos.
// Embutido por composição em cada registro concreto.
type baseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func newBaseEvent(aggregateID string) baseEvent {
	return baseEvent{AggregateID: aggregateID, OccurredAt: time.Now().UTC()}
}

func (e baseEvent) EventAggregateID() string    { return e.AggregateID }
func (e baseEvent) EventOccurredAt() time.Time { return e.OccurredAt }

// ProductAdded sinaliza o registro de um novo produto no catálogo.
// Dispara o provisionamento de um InventoryItem com quantidade zero.
type ProductAdded struct {
	baseEvent
	ProductID string `json:"product_id"`
	Metric    Metric `json:"metric"`
}

// NewProductAdded cria o evento de produto registrado.
func NewProductAdded(productID string, metric Metric) ProductAdded {
	return ProductAdded{baseEvent: newBaseEvent(productID), ProductID: productID, Metric: metric}
}

func (e ProductAdded) EventName() string { return EventProductAdded }

// InventoryItemAdded sinaliza que um novo item de inventário foi provisionado.
type InventoryItemAdded struct {
	baseEvent
	InventoryItemID string `json:"inventory_item_id"`
	ProductID       string `json:"product_id"`
}

// NewInventoryItemAdded cria o evento de item de inventário provisionado.
func NewInventoryItemAdded(itemID, productID string) InventoryItemAdded {
	return InventoryItemAdded{baseEvent: newBaseEvent(itemID), InventoryItemID: itemID, ProductID: productID}
}

func (e InventoryItemAdded) EventName() string { return EventInventoryItemAdded }

// QuantityReduced sinaliza a redução de quantidade de um item de inventário.
// Carrega a quantidade restante para que a política de restoque avalie o
// limiar sem re-ler o agregado.
type QuantityReduced struct {
	baseEvent
	InventoryItemID   string   `json:"inventory_item_id"`
	ProductID         string   `json:"product_id"`
	RemainingQuantity Quantity `json:"remaining_quantity"`
}

// NewQuantityReduced cria o evento de quantidade reduzida a partir do item atualizado.
func NewQuantityReduced(item InventoryItem) QuantityReduced {
	return QuantityReduced{
		baseEvent:         newBaseEvent(item.ID),
		InventoryItemID:   item.ID,
		ProductID:         item.ProductID,
		RemainingQuantity: item.Quantity,
	}
}

func (e QuantityReduced) EventName() string { return EventQuantityReduced }

// StockShort é o alerta de estoque abaixo do limiar de restoque configurado.
// Avaliação pura de política: nenhum efeito colateral além da emissão.
type StockShort struct {
	baseEvent
	ProductID       string   `json:"product_id"`
	CurrentQuantity Quantity `json:"current_quantity"`
	Threshold       Quantity `json:"threshold"`
}

// NewStockShort cria o alerta de estoque curto.
func NewStockShort(productID string, current, threshold Quantity) StockShort {
	return StockShort{
		baseEvent:       newBaseEvent(productID),
		ProductID:       productID,
		CurrentQuantity: current,
		Threshold:       threshold,
	}
}

func (e StockShort) EventName() string { return EventStockShort }

// OrderPaid sinaliza a transição OPEN → PAID de um pedido.
type OrderPaid struct {
	baseEvent
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

// NewOrderPaid cria o evento de pedido pago.
func NewOrderPaid(orderID, customerID string) OrderPaid {
	return OrderPaid{baseEvent: newBaseEvent(orderID), OrderID: orderID, CustomerID: customerID}
}

func (e OrderPaid) EventName() string { return EventOrderPaid }

// OrderCompleted sinaliza a conclusão de um pedido. Também é sintetizado no
// cancelamento de pedidos ainda não concluídos, para que a lógica de
// compensação a jusante tenha sempre um gatilho uniforme.
type OrderCompleted struct {
	baseEvent
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

// NewOrderCompleted cria o evento de pedido concluído.
func NewOrderCompleted(orderID, customerID string) OrderCompleted {
	return OrderCompleted{baseEvent: newBaseEvent(orderID), OrderID: orderID, CustomerID: customerID}
}

func (e OrderCompleted) EventName() string { return EventOrderCompleted }

// OrderCanceled sinaliza o cancelamento de um pedido.
// WasCompleted indica se o pedido havia atingido COMPLETED antes do
// cancelamento, pois o status persistido já é CANCELLED quando o assinante
// roda, então o flag precisa viajar no próprio evento.
type OrderCanceled struct {
	baseEvent
	OrderID      string `json:"order_id"`
	CustomerID   string `json:"customer_id"`
	Reason       string `json:"reason"`
	WasCompleted bool   `json:"was_completed"`
}

// NewOrderCanceled cria o evento de pedido cancelado.
func NewOrderCanceled(orderID, customerID, reason string, wasCompleted bool) OrderCanceled {
	return OrderCanceled{
		baseEvent:    newBaseEvent(orderID),
		OrderID:      orderID,
		CustomerID:   customerID,
		Reason:       reason,
		WasCompleted: wasCompleted,
	}
}

func (e OrderCanceled) EventName() string { return EventOrderCanceled }
