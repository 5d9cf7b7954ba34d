package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/logger"
	"gocommerce/internal/pkg/middleware"
)

// OrderService define o contrato que o Handler espera da camada de Serviço.
type OrderService interface {
	Create(ctx domain.Context, customerID string) (domain.Order, error)
	AddLine(ctx domain.Context, orderID, productID string, quantity domain.Quantity) (domain.Order, error)
	RemoveLine(ctx domain.Context, orderID, lineItemID string) (domain.Order, error)
	MarkPaid(ctx domain.Context, orderID string) (domain.Order, error)
	Complete(ctx domain.Context, orderID string) (domain.OrderCompletionReport, error)
	Cancel(ctx domain.Context, orderID, reason string) (domain.Order, error)
	FindByID(ctx domain.Context, orderID string) (domain.Order, error)
	FindByStatus(ctx domain.Context, status domain.OrderStatus) ([]domain.Order, error)
	FindByCustomer(ctx domain.Context, customerID string) ([]domain.Order, error)
}

// AddLineRequest é o payload de POST /v1/orders/{id}/lines.
type AddLineRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  domain.Quantity `json:"quantity"`
}

// CancelRequest é o payload de POST /v1/orders/{id}/cancellation.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Handler agrupa todos os métodos de Handler de pedidos.
type Handler struct {
	Service OrderService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc OrderService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
			}
		}
		return
	}

	// Falha composta de conclusão: o relatório inteiro volta no corpo,
	// com o resultado e o motivo de cada linha.
	var completionFailure *domain.OrderCompletionFailure
	if errors.As(err, &completionFailure) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(completionFailure.HTTPStatus())
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":     completionFailure.HTTPStatus(),
			"category": completionFailure.Category(),
			"message":  "Uma ou mais linhas do pedido não puderam ser atendidas.",
			"report":   completionFailure.Report,
		})
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	errorResponse := domain.ErrorResponse{
		Code:     status,
		Category: category,
		Message:  message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// OrdersHandler despacha requisições para /v1/orders:
// POST abre um novo pedido para o cliente autenticado, GET lista os pedidos
// do cliente (ou por status, para admins).
func (h *Handler) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserClaimsFromContext(r.Context())
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autenticação necessária."), http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodPost:
		order, err := h.Service.Create(r.Context(), claims.UserID)
		h.handleServiceResponse(w, r, order, err, http.StatusCreated)
	case http.MethodGet:
		if status := r.URL.Query().Get("status"); status != "" && claims.Role == domain.RoleAdmin {
			orders, err := h.Service.FindByStatus(r.Context(), domain.OrderStatus(status))
			h.handleServiceResponse(w, r, orders, err, http.StatusOK)
			return
		}
		orders, err := h.Service.FindByCustomer(r.Context(), claims.UserID)
		h.handleServiceResponse(w, r, orders, err, http.StatusOK)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// OrderByIDHandler despacha requisições para /v1/orders/{id} e seus
// sub-recursos de transição:
//
//	GET    /v1/orders/{id}                     busca
//	POST   /v1/orders/{id}/lines               adiciona linha (somente OPEN)
//	DELETE /v1/orders/{id}/lines/{lineID}      remove linha (somente OPEN)
//	POST   /v1/orders/{id}/payment             transição OPEN para PAID
//	POST   /v1/orders/{id}/completion          transição PAID para COMPLETED (verificação de estoque)
//	POST   /v1/orders/{id}/cancellation        transição para CANCELLED
func (h *Handler) OrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// segments: ["v1", "orders", "{id}", ...]
	if len(segments) < 3 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou ID ausente."), http.StatusOK)
		return
	}
	orderID := segments[2]

	if len(segments) == 3 {
		if r.Method != http.MethodGet {
			http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
			return
		}
		order, err := h.Service.FindByID(r.Context(), orderID)
		h.handleServiceResponse(w, r, order, err, http.StatusOK)
		return
	}

	switch segments[3] {
	case "lines":
		h.linesHandler(w, r, orderID, segments)
	case "payment":
		h.requirePost(w, r, func() {
			order, err := h.Service.MarkPaid(r.Context(), orderID)
			h.handleServiceResponse(w, r, order, err, http.StatusOK)
		})
	case "completion":
		h.requirePost(w, r, func() {
			report, err := h.Service.Complete(r.Context(), orderID)
			h.handleServiceResponse(w, r, report, err, http.StatusOK)
		})
	case "cancellation":
		h.requirePost(w, r, func() {
			var payload CancelRequest
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusOK)
				return
			}
			order, err := h.Service.Cancel(r.Context(), orderID, payload.Reason)
			h.handleServiceResponse(w, r, order, err, http.StatusOK)
		})
	default:
		h.handleServiceResponse(w, r, nil, apperror.NewNotFoundError("Recurso de pedido desconhecido."), http.StatusOK)
	}
}

// linesHandler lida com o sub-recurso de linhas do pedido.
func (h *Handler) linesHandler(w http.ResponseWriter, r *http.Request, orderID string, segments []string) {
	switch {
	case r.Method == http.MethodPost && len(segments) == 4:
		var payload AddLineRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusOK)
			return
		}
		order, err := h.Service.AddLine(r.Context(), orderID, payload.ProductID, payload.Quantity)
		h.handleServiceResponse(w, r, order, err, http.StatusCreated)
	case r.Method == http.MethodDelete && len(segments) == 5:
		order, err := h.Service.RemoveLine(r.Context(), orderID, segments[4])
		h.handleServiceResponse(w, r, order, err, http.StatusOK)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// requirePost executa fn apenas para POST; demais métodos recebem 405.
func (h *Handler) requirePost(w http.ResponseWriter, r *http.Request, fn func()) {
	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	fn()
}
