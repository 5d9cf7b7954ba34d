package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// LineOutcomeStatus é o resultado individual de uma linha na verificação de estoque.
type LineOutcomeStatus string

const (
	LineOutcomeSuccess LineOutcomeStatus = "SUCCESS"
	LineOutcomeError   LineOutcomeStatus = "ERROR"
	LineOutcomeSkipped LineOutcomeStatus = "SKIPPED"
)

// Motivos padronizados de falha por linha.
const (
	ReasonInsufficientStock = "insufficient stock"
	ReasonNoInventoryItem   = "no inventory item found"
)

// LineOutcome é o resultado da verificação de uma única linha de pedido.
// Problemas por linha são sempre agregados no relatório, nunca lançados
// individualmente.
type LineOutcome struct {
	LineItemID string            `json:"line_item_id"`
	ProductID  string            `json:"product_id"`
	Status     LineOutcomeStatus `json:"status"`
	Reason     string            `json:"reason,omitempty"`
}

// SuccessOutcome cria um resultado de sucesso para a linha.
func SuccessOutcome(line LineItem) LineOutcome {
	return LineOutcome{LineItemID: line.ID, ProductID: line.ProductID, Status: LineOutcomeSuccess}
}

// ErrorOutcome cria um resultado de erro para a linha, com o motivo.
func ErrorOutcome(line LineItem, reason string) LineOutcome {
	return LineOutcome{LineItemID: line.ID, ProductID: line.ProductID, Status: LineOutcomeError, Reason: reason}
}

// SkippedOutcome cria um resultado de linha ignorada.
func SkippedOutcome(line LineItem) LineOutcome {
	return LineOutcome{LineItemID: line.ID, ProductID: line.ProductID, Status: LineOutcomeSkipped}
}

// OrderCompletionReport agrega os resultados por linha da verificação de um
// pedido. É um valor puro de agregação, não uma entidade persistida:
// o relatório é "bem-sucedido" sse nenhuma linha tem resultado ERROR.
type OrderCompletionReport struct {
	OrderID  string        `json:"order_id"`
	Outcomes []LineOutcome `json:"outcomes"`
}

// NewOrderCompletionReport monta o relatório para o pedido e os resultados informados.
func NewOrderCompletionReport(orderID string, outcomes []LineOutcome) OrderCompletionReport {
	return OrderCompletionReport{OrderID: orderID, Outcomes: outcomes}
}

// HasErrors indica se alguma linha falhou.
func (r OrderCompletionReport) HasErrors() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Status == LineOutcomeError {
			return true
		}
	}
	return false
}

// FailedOutcomes retorna apenas as linhas com resultado ERROR.
func (r OrderCompletionReport) FailedOutcomes() []LineOutcome {
	var failed []LineOutcome
	for _, outcome := range r.Outcomes {
		if outcome.Status == LineOutcomeError {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// OrderCompletionFailure é a falha composta de uma conclusão de pedido:
// carrega o relatório completo para que o chamador inspecione quais linhas
// falharam e por quê. Implementa a interface AppError de internal/errors.
type OrderCompletionFailure struct {
	Report OrderCompletionReport
}

// NewOrderCompletionFailure cria a falha composta a partir do relatório.
func NewOrderCompletionFailure(report OrderCompletionReport) *OrderCompletionFailure {
	return &OrderCompletionFailure{Report: report}
}

func (e *OrderCompletionFailure) Error() string {
	failed := e.Report.FailedOutcomes()
	parts := make([]string, 0, len(failed))
	for _, outcome := range failed {
		parts = append(parts, fmt.Sprintf("linha %s (produto %s): %s", outcome.LineItemID, outcome.ProductID, outcome.Reason))
	}
	return fmt.Sprintf("Falha na conclusão do pedido %s: %s", e.Report.OrderID, strings.Join(parts, "; "))
}

func (e *OrderCompletionFailure) Category() string { return "ORDER_COMPLETION_FAILURE" }
func (e *OrderCompletionFailure) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *OrderCompletionFailure) Unwrap() error    { return nil }
