package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperror "gocommerce/internal/errors"
)

// Metric representa a unidade de medida de uma Quantity (e.g., unidade, quilograma).
// Toda aritmética de quantidades exige métricas iguais, sem conversão implícita.
type Metric string

const (
	MetricUnit     Metric = "unit"
	MetricKilogram Metric = "kilogram"
	MetricLiter    Metric = "liter"
)

// IsValid verifica se o valor corresponde a uma métrica conhecida.
func (m Metric) IsValid() bool {
	switch m {
	case MetricUnit, MetricKilogram, MetricLiter:
		return true
	}
	return false
}

// IsCompatibleWith verifica se duas métricas podem ser combinadas em uma operação aritmética.
func (m Metric) IsCompatibleWith(other Metric) bool {
	return m == other
}

// Quantity é o Value Object que combina um valor numérico com sua unidade de medida.
// O valor é decimal exato: somar e subtrair a mesma quantidade devolve sempre o
// valor original, sem resíduo de ponto flutuante. Valores negativos são
// representáveis (usados transitoriamente em verificações de subtração), mas
// nunca devem ser persistidos como nível final de estoque sem passar pelo
// caminho de erro.
type Quantity struct {
	Amount decimal.Decimal `json:"amount"`
	Metric Metric          `json:"metric"`
}

// NewQuantity cria uma nova Quantity com o valor e a métrica informados.
func NewQuantity(amount float64, metric Metric) Quantity {
	return Quantity{Amount: decimal.NewFromFloat(amount), Metric: metric}
}

// ZeroQuantity retorna a quantidade zero na métrica informada.
// Usada no provisionamento de novos itens de inventário.
func ZeroQuantity(metric Metric) Quantity {
	return Quantity{Amount: decimal.Zero, Metric: metric}
}

// Add soma duas quantidades. Falha com MetricMismatch se as métricas diferirem.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if !q.Metric.IsCompatibleWith(other.Metric) {
		return Quantity{}, apperror.NewMetricMismatchError(fmt.Sprintf("não é possível operar %s com %s", q.Metric, other.Metric))
	}
	return Quantity{Amount: q.Amount.Add(other.Amount), Metric: q.Metric}, nil
}

// Subtract subtrai 'other' desta quantidade. Falha com MetricMismatch se as métricas diferirem.
// O resultado pode ser negativo; cabe ao chamador decidir o que fazer com isso.
func (q Quantity) Subtract(other Quantity) (Quantity, error) {
	if !q.Metric.IsCompatibleWith(other.Metric) {
		return Quantity{}, apperror.NewMetricMismatchError(fmt.Sprintf("não é possível operar %s com %s", q.Metric, other.Metric))
	}
	return Quantity{Amount: q.Amount.Sub(other.Amount), Metric: q.Metric}, nil
}

// IsGreaterThanOrEqualTo compara duas quantidades. Falha com MetricMismatch se as métricas diferirem.
func (q Quantity) IsGreaterThanOrEqualTo(other Quantity) (bool, error) {
	if !q.Metric.IsCompatibleWith(other.Metric) {
		return false, apperror.NewMetricMismatchError(fmt.Sprintf("não é possível operar %s com %s", q.Metric, other.Metric))
	}
	return q.Amount.GreaterThanOrEqual(other.Amount), nil
}

// Equals compara valor e métrica. Comparação de igualdade deve sempre passar
// por aqui: o decimal interno carrega ponteiros, então '==' não compara valores.
func (q Quantity) Equals(other Quantity) bool {
	return q.Metric == other.Metric && q.Amount.Equal(other.Amount)
}

// IsNegative indica se o valor da quantidade é negativo.
func (q Quantity) IsNegative() bool {
	return q.Amount.IsNegative()
}

// IsZeroOrNegative indica se o valor da quantidade é zero ou negativo.
// Usada pela varredura de itens fora de estoque.
func (q Quantity) IsZeroOrNegative() bool {
	return q.Amount.Sign() <= 0
}

// String formata a quantidade para logs e mensagens de erro.
func (q Quantity) String() string {
	return fmt.Sprintf("%s %s", q.Amount.String(), q.Metric)
}
