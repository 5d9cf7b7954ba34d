package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
)

// TestInventoryItem_Decrease_Success testa o decremento (10 - 6 = 4) e o
// registro do evento QuantityReduced com a quantidade restante.
func TestInventoryItem_Decrease_Success(t *testing.T) {
	item := domain.NewInventoryItem("prod-1", domain.NewQuantity(10, domain.MetricUnit))

	err := item.Decrease(domain.NewQuantity(6, domain.MetricUnit))

	assert.NoError(t, err)
	assert.True(t, item.Quantity.Equals(domain.NewQuantity(4, domain.MetricUnit)))

	events := item.PendingEvents()
	assert.Len(t, events, 1)
	reduced := events[0].(domain.QuantityReduced)
	assert.Equal(t, "prod-1", reduced.ProductID)
	assert.True(t, reduced.RemainingQuantity.Equals(domain.NewQuantity(4, domain.MetricUnit)))
}

// TestInventoryItem_Decrease_Insufficient testa que o decremento nunca deixa
// o estoque negativo: pedir 11 de 10 falha e o estoque fica intocado.
func TestInventoryItem_Decrease_Insufficient(t *testing.T) {
	item := domain.NewInventoryItem("prod-1", domain.NewQuantity(10, domain.MetricUnit))

	err := item.Decrease(domain.NewQuantity(11, domain.MetricUnit))

	assert.Error(t, err)
	assert.True(t, item.Quantity.Equals(domain.NewQuantity(10, domain.MetricUnit)))
	assert.Empty(t, item.PendingEvents())
}

// TestInventoryItem_Decrease_MetricMismatch testa a recusa de métrica incompatível.
func TestInventoryItem_Decrease_MetricMismatch(t *testing.T) {
	item := domain.NewInventoryItem("prod-1", domain.NewQuantity(10, domain.MetricKilogram))

	err := item.Decrease(domain.NewQuantity(1, domain.MetricUnit))

	var mismatch *apperror.MetricMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.True(t, item.Quantity.Equals(domain.NewQuantity(10, domain.MetricKilogram)))
}

// TestInventoryItem_Increase testa o caminho de restoque (4 + 6 = 10),
// que não registra evento.
func TestInventoryItem_Increase(t *testing.T) {
	item := domain.NewInventoryItem("prod-1", domain.NewQuantity(4, domain.MetricLiter))

	err := item.Increase(domain.NewQuantity(6, domain.MetricLiter))

	assert.NoError(t, err)
	assert.True(t, item.Quantity.Equals(domain.NewQuantity(10, domain.MetricLiter)))
	assert.Empty(t, item.PendingEvents())
}

// TestInventoryItem_HasSufficientQuantity testa a verificação sem mutação.
func TestInventoryItem_HasSufficientQuantity(t *testing.T) {
	item := domain.NewInventoryItem("prod-1", domain.NewQuantity(10, domain.MetricUnit))

	ok, err := item.HasSufficientQuantity(domain.NewQuantity(10, domain.MetricUnit))
	assert.NoError(t, err)
	assert.True(t, ok) // Exatamente o disponível ainda é suficiente

	ok, err = item.HasSufficientQuantity(domain.NewQuantity(11, domain.MetricUnit))
	assert.NoError(t, err)
	assert.False(t, ok)
}

// TestOrderCompletionReport testa a agregação de resultados por linha.
func TestOrderCompletionReport(t *testing.T) {
	lineA := domain.LineItem{ID: "line-a", ProductID: "prod-a"}
	lineB := domain.LineItem{ID: "line-b", ProductID: "prod-b"}

	report := domain.NewOrderCompletionReport("order-1", []domain.LineOutcome{
		domain.SuccessOutcome(lineA),
		domain.ErrorOutcome(lineB, domain.ReasonInsufficientStock),
	})

	assert.True(t, report.HasErrors())
	failed := report.FailedOutcomes()
	assert.Len(t, failed, 1)
	assert.Equal(t, "line-b", failed[0].LineItemID)
	assert.Equal(t, domain.ReasonInsufficientStock, failed[0].Reason)

	// Falha composta carrega o relatório e descreve as linhas no texto
	failure := domain.NewOrderCompletionFailure(report)
	assert.Contains(t, failure.Error(), "prod-b")
	assert.Contains(t, failure.Error(), domain.ReasonInsufficientStock)
	assert.Equal(t, 409, failure.HTTPStatus())

	clean := domain.NewOrderCompletionReport("order-2", []domain.LineOutcome{
		domain.SuccessOutcome(lineA),
	})
	assert.False(t, clean.HasErrors())
	assert.Empty(t, clean.FailedOutcomes())
}
