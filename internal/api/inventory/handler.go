package inventory

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/logger"
)

// InventoryService define o contrato que o Handler espera da camada de Serviço.
type InventoryService interface {
	FindByProduct(ctx domain.Context, productID string) (domain.InventoryItem, error)
	Stock(ctx domain.Context, productID string, quantity domain.Quantity) (domain.InventoryItem, error)
	FindOutOfStock(ctx domain.Context) ([]domain.InventoryItem, error)
}

// StockRequest é o payload de POST /v1/inventory/{productID}/stock.
type StockRequest struct {
	Quantity domain.Quantity `json:"quantity"`
}

// Handler agrupa os métodos de Handler de inventário.
type Handler struct {
	Service InventoryService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc InventoryService, log logger.Logger) *Handler {
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

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
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

// OutOfStockHandler lida com GET /v1/inventory/reports/out-of-stock.
func (h *Handler) OutOfStockHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	items, err := h.Service.FindOutOfStock(r.Context())
	h.handleServiceResponse(w, r, items, err, http.StatusOK)
}

// InventoryByProductHandler despacha requisições para /v1/inventory/{productID}:
// GET busca o item de inventário do produto; POST em /stock aumenta o estoque.
func (h *Handler) InventoryByProductHandler(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// segments: ["v1", "inventory", "{productID}", ...]
	if len(segments) < 3 || segments[2] == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Formato de URL inválido ou ID ausente."), http.StatusOK)
		return
	}
	productID := segments[2]

	switch {
	case r.Method == http.MethodGet && len(segments) == 3:
		item, err := h.Service.FindByProduct(r.Context(), productID)
		h.handleServiceResponse(w, r, item, err, http.StatusOK)
	case r.Method == http.MethodPost && len(segments) == 4 && segments[3] == "stock":
		var payload StockRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusOK)
			return
		}
		item, err := h.Service.Stock(r.Context(), productID, payload.Quantity)
		h.handleServiceResponse(w, r, item, err, http.StatusOK)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}
