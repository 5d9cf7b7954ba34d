package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
)

// TestQuantity_Add_Success testa a soma de quantidades com a mesma métrica.
func TestQuantity_Add_Success(t *testing.T) {
	a := domain.NewQuantity(4, domain.MetricUnit)
	b := domain.NewQuantity(6, domain.MetricUnit)

	sum, err := a.Add(b)

	assert.NoError(t, err)
	assert.True(t, sum.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, domain.MetricUnit, sum.Metric)
}

// TestQuantity_Add_MetricMismatch testa que métricas diferentes nunca se combinam.
func TestQuantity_Add_MetricMismatch(t *testing.T) {
	a := domain.NewQuantity(4, domain.MetricUnit)
	b := domain.NewQuantity(6, domain.MetricKilogram)

	_, err := a.Add(b)

	assert.Error(t, err)
	var mismatch *apperror.MetricMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

// TestQuantity_Subtract_Success testa a subtração (10 - 6 = 4).
func TestQuantity_Subtract_Success(t *testing.T) {
	a := domain.NewQuantity(10, domain.MetricKilogram)
	b := domain.NewQuantity(6, domain.MetricKilogram)

	diff, err := a.Subtract(b)

	assert.NoError(t, err)
	assert.True(t, diff.Amount.Equal(decimal.NewFromInt(4)))
	assert.False(t, diff.IsNegative())
}

// TestQuantity_Subtract_NegativeResult testa que o resultado negativo é
// representável (usado nas verificações), mas sinalizado pelo predicado.
func TestQuantity_Subtract_NegativeResult(t *testing.T) {
	a := domain.NewQuantity(5, domain.MetricLiter)
	b := domain.NewQuantity(8, domain.MetricLiter)

	diff, err := a.Subtract(b)

	assert.NoError(t, err)
	assert.True(t, diff.IsNegative())
}

// TestQuantity_AddSubtract_RoundTrip testa que somar e subtrair a mesma
// quantidade devolve exatamente o valor original, inclusive com frações
// decimais que não têm representação binária exata (0.1 + 0.2 - 0.2 = 0.1).
func TestQuantity_AddSubtract_RoundTrip(t *testing.T) {
	cases := []struct {
		base  float64
		delta float64
	}{
		{0.1, 0.2},
		{1.05, 0.15},
		{1234.567, 0.001},
		{10, 3.3},
	}

	for _, tc := range cases {
		base := domain.NewQuantity(tc.base, domain.MetricKilogram)
		delta := domain.NewQuantity(tc.delta, domain.MetricKilogram)

		sum, err := base.Add(delta)
		assert.NoError(t, err)

		back, err := sum.Subtract(delta)
		assert.NoError(t, err)

		assert.True(t, back.Equals(base),
			"%v + %v - %v deveria devolver %v, mas devolveu %v", tc.base, tc.delta, tc.delta, base, back)
	}
}

// TestQuantity_IsGreaterThanOrEqualTo testa a comparação usada pela política
// de limiar de restoque.
func TestQuantity_IsGreaterThanOrEqualTo(t *testing.T) {
	threshold := domain.NewQuantity(5, domain.MetricUnit)

	below, err := domain.NewQuantity(4, domain.MetricUnit).IsGreaterThanOrEqualTo(threshold)
	assert.NoError(t, err)
	assert.False(t, below)

	atThreshold, err := domain.NewQuantity(5, domain.MetricUnit).IsGreaterThanOrEqualTo(threshold)
	assert.NoError(t, err)
	assert.True(t, atThreshold)

	_, err = domain.NewQuantity(5, domain.MetricKilogram).IsGreaterThanOrEqualTo(threshold)
	assert.Error(t, err) // Métricas incompatíveis
}

// TestMetric_IsValid testa o reconhecimento das métricas suportadas.
func TestMetric_IsValid(t *testing.T) {
	assert.True(t, domain.MetricUnit.IsValid())
	assert.True(t, domain.MetricKilogram.IsValid())
	assert.True(t, domain.MetricLiter.IsValid())
	assert.False(t, domain.Metric("gallon").IsValid())
}
