package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperror "gocommerce/internal/errors"
)

// InventoryItem é o registro-razão de estoque: exatamente um item por produto
// (modelo de inventário único; a variante multi-armazém não é coberta aqui).
// Inclui a coluna 'version' para Controle de Concorrência Otimista (OCC):
// o save compara a versão lida e falha com ConflictError se outro escritor
// tiver atualizado o registro no meio tempo.
type InventoryItem struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  Quantity  `json:"quantity"`
	Version   int       `json:"version"` // Para Controle de Concorrência Otimista (OCC)
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Buffer de eventos do agregado: eventos registrados pelas mutações e
	// drenados pela camada de serviço no passo pós-commit (via outbox).
	events []Event
}

// NewInventoryItem cria um novo item de inventário para um produto com a
// quantidade inicial informada.
func NewInventoryItem(productID string, quantity Quantity) InventoryItem {
	now := time.Now().UTC()
	return InventoryItem{
		ID:        uuid.New().String(),
		ProductID: productID,
		Quantity:  quantity,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasSufficientQuantity verifica se o estoque atual cobre a quantidade pedida.
// Falha com MetricMismatch se as métricas forem incompatíveis.
func (i *InventoryItem) HasSufficientQuantity(requested Quantity) (bool, error) {
	remaining, err := i.Quantity.Subtract(requested)
	if err != nil {
		return false, err
	}
	return !remaining.IsNegative(), nil
}

// Decrease reduz a quantidade do item, registrando um evento QuantityReduced
// no buffer do agregado. Exige estoque suficiente: o chamador deve ter
// verificado antes; a checagem aqui é a última linha de defesa contra
// persistir estoque negativo.
func (i *InventoryItem) Decrease(quantity Quantity) error {
	ok, err := i.HasSufficientQuantity(quantity)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewValidationError(fmt.Sprintf(
			"Estoque insuficiente: há %s, mas foi pedida a redução de %s.", i.Quantity, quantity))
	}

	reduced, err := i.Quantity.Subtract(quantity)
	if err != nil {
		return err
	}

	i.Quantity = reduced
	i.UpdatedAt = time.Now().UTC()
	i.RegisterEvent(NewQuantityReduced(*i))

	return nil
}

// Increase aumenta a quantidade do item (caminho de restoque/compensação).
func (i *InventoryItem) Increase(quantity Quantity) error {
	increased, err := i.Quantity.Add(quantity)
	if err != nil {
		return err
	}

	i.Quantity = increased
	i.UpdatedAt = time.Now().UTC()

	return nil
}

// RegisterEvent adiciona um evento ao buffer do agregado.
func (i *InventoryItem) RegisterEvent(event Event) {
	i.events = append(i.events, event)
}

// PendingEvents retorna os eventos ainda não drenados para o outbox.
func (i *InventoryItem) PendingEvents() []Event {
	return i.events
}

// ClearEvents limpa o buffer após os eventos serem gravados no outbox.
func (i *InventoryItem) ClearEvents() {
	i.events = nil
}
