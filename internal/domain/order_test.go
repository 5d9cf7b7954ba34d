package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
)

func newTestProduct(metric domain.Metric) domain.Product {
	return domain.Product{
		ID:       "prod-1",
		SKU:      "SKU-1",
		Name:     "Café Especial",
		Price:    42.50,
		Metric:   metric,
		IsActive: true,
	}
}

// TestOrder_Lifecycle_Success percorre o caminho feliz OPEN → PAID → COMPLETED.
func TestOrder_Lifecycle_Success(t *testing.T) {
	order, err := domain.NewOrder("customer-1")
	assert.NoError(t, err)
	assert.True(t, order.IsOpen())

	_, err = order.AddLine(newTestProduct(domain.MetricKilogram), domain.NewQuantity(2, domain.MetricKilogram))
	assert.NoError(t, err)
	assert.Equal(t, 85.0, order.Total())

	assert.NoError(t, order.MarkPaid())
	assert.True(t, order.IsPaid())

	assert.NoError(t, order.Complete())
	assert.True(t, order.IsCompleted())

	// Eventos registrados na ordem das transições
	events := order.PendingEvents()
	assert.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderPaid, events[0].EventName())
	assert.Equal(t, domain.EventOrderCompleted, events[1].EventName())
}

// TestOrder_Complete_RequiresPaid testa que a conclusão exige o estado PAID.
func TestOrder_Complete_RequiresPaid(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")

	err := order.Complete()

	var transition *apperror.StateTransitionError
	assert.ErrorAs(t, err, &transition)
	assert.True(t, order.IsOpen()) // Estado intocado
}

// TestOrder_MarkPaid_Monotonic testa que pagar duas vezes falha.
func TestOrder_MarkPaid_Monotonic(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.MarkPaid())

	err := order.MarkPaid()

	var transition *apperror.StateTransitionError
	assert.ErrorAs(t, err, &transition)
}

// TestOrder_Cancel_SynthesizesCompletion testa que cancelar um pedido ainda
// não concluído sintetiza exatamente um OrderCompleted antes do OrderCanceled,
// com o flag WasCompleted=false.
func TestOrder_Cancel_SynthesizesCompletion(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.MarkPaid())
	order.ClearEvents() // Simula o drain do outbox após o pagamento

	assert.NoError(t, order.Cancel("cliente desistiu"))
	assert.True(t, order.IsCanceled())

	events := order.PendingEvents()
	assert.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderCompleted, events[0].EventName())
	assert.Equal(t, domain.EventOrderCanceled, events[1].EventName())

	canceled := events[1].(domain.OrderCanceled)
	assert.False(t, canceled.WasCompleted)
	assert.Equal(t, "cliente desistiu", canceled.Reason)
}

// TestOrder_Cancel_AfterCompletion testa que cancelar um pedido já concluído
// NÃO sintetiza um segundo OrderCompleted, e que o flag WasCompleted viaja true.
func TestOrder_Cancel_AfterCompletion(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.MarkPaid())
	assert.NoError(t, order.Complete())
	order.ClearEvents()

	assert.NoError(t, order.Cancel("devolução"))

	events := order.PendingEvents()
	assert.Len(t, events, 1)
	canceled := events[0].(domain.OrderCanceled)
	assert.True(t, canceled.WasCompleted)
}

// TestOrder_Cancel_Terminal testa que CANCELLED é terminal: cancelar de novo falha.
func TestOrder_Cancel_Terminal(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.Cancel("duplicado"))

	err := order.Cancel("de novo")

	var transition *apperror.StateTransitionError
	assert.ErrorAs(t, err, &transition)
}

// TestOrder_AddLine_OnlyWhileOpen testa que linhas só mudam enquanto OPEN.
func TestOrder_AddLine_OnlyWhileOpen(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.MarkPaid())

	_, err := order.AddLine(newTestProduct(domain.MetricUnit), domain.NewQuantity(1, domain.MetricUnit))

	var transition *apperror.StateTransitionError
	assert.ErrorAs(t, err, &transition)
}

// TestOrder_AddLine_MetricMismatch testa a checagem de compatibilidade de
// métrica na criação da linha.
func TestOrder_AddLine_MetricMismatch(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")

	_, err := order.AddLine(newTestProduct(domain.MetricKilogram), domain.NewQuantity(3, domain.MetricUnit))

	var mismatch *apperror.MetricMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Empty(t, order.LineItems)
}

// TestOrder_RemoveLine testa a remoção de linha enquanto OPEN.
func TestOrder_RemoveLine(t *testing.T) {
	order, _ := domain.NewOrder("customer-1")
	line, err := order.AddLine(newTestProduct(domain.MetricUnit), domain.NewQuantity(1, domain.MetricUnit))
	assert.NoError(t, err)

	assert.NoError(t, order.RemoveLine(line.ID))
	assert.Empty(t, order.LineItems)

	// Linha inexistente
	var notFound *apperror.NotFoundError
	assert.ErrorAs(t, order.RemoveLine("no-such-line"), &notFound)
}

// TestLineItem_SnapshotFrozen testa que o snapshot da linha congela preço e nome.
func TestLineItem_SnapshotFrozen(t *testing.T) {
	product := newTestProduct(domain.MetricUnit)
	line, err := domain.NewLineItem(product, domain.NewQuantity(2, domain.MetricUnit))
	assert.NoError(t, err)

	// Mudança posterior no catálogo não altera a linha
	product.Price = 99.99
	product.Name = "Outro Nome"

	assert.Equal(t, 42.50, line.UnitPrice)
	assert.Equal(t, "Café Especial", line.ProductName)
	assert.Equal(t, 85.0, line.Total())
}
