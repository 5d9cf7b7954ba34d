package router

import (
	"net/http"
	"time"

	"gocommerce/internal/api/customer"
	"gocommerce/internal/api/inventory"
	"gocommerce/internal/api/order"
	"gocommerce/internal/api/product"
	"gocommerce/internal/domain"
	"gocommerce/internal/pkg/cache"
	"gocommerce/internal/pkg/middleware"
)

// Deps agrupa os Handlers e serviços de infraestrutura que o roteador precisa.
type Deps struct {
	ProductHandler   *product.Handler
	OrderHandler     *order.Handler
	InventoryHandler *inventory.Handler
	CustomerHandler  *customer.Handler

	TokenSvc          middleware.TokenService
	CacheClient       cache.Client
	RateLimit         int
	RateLimitInterval time.Duration
}

// NewRouter configura e retorna o roteador HTTP principal.
// Recebe os Handlers já inicializados por injeção de dependências.
func NewRouter(deps Deps) http.Handler {

	// Usamos o ServeMux padrão do net/http para roteamento
	mux := http.NewServeMux()

	auth := middleware.NewAuthMiddleware(deps.TokenSvc)
	adminOnly := middleware.PermissionMiddleware(domain.RoleAdmin)

	// --- 1. Rotas de Health Check ---
	mux.HandleFunc("/ping", PingHandler)

	// --- 2. Rotas abertas (registro e login) ---
	mux.HandleFunc("/v1/register", deps.CustomerHandler.RegisterCustomerHandler)
	mux.HandleFunc("/v1/login", deps.CustomerHandler.LoginHandler)

	// --- 3. Catálogo de Produtos ---
	// Leitura aberta a qualquer cliente autenticado; escrita somente admin.
	mux.HandleFunc("/v1/products", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			adminOnly(deps.ProductHandler.ProductsHandler)(w, r)
			return
		}
		deps.ProductHandler.ProductsHandler(w, r)
	}))
	mux.HandleFunc("/v1/products/", auth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			adminOnly(deps.ProductHandler.ProductByIDHandler)(w, r)
			return
		}
		deps.ProductHandler.ProductByIDHandler(w, r)
	}))

	// --- 4. Pedidos ---
	mux.HandleFunc("/v1/orders", auth(deps.OrderHandler.OrdersHandler))
	mux.HandleFunc("/v1/orders/", auth(deps.OrderHandler.OrderByIDHandler))

	// --- 5. Inventário (somente admin) ---
	mux.HandleFunc("/v1/inventory/reports/out-of-stock", auth(adminOnly(deps.InventoryHandler.OutOfStockHandler)))
	mux.HandleFunc("/v1/inventory/", auth(adminOnly(deps.InventoryHandler.InventoryByProductHandler)))

	// --- 6. Middlewares globais ---
	// Rate limiting por IP, apoiado no Redis.
	var handler http.Handler = mux
	if deps.CacheClient != nil && deps.RateLimit > 0 {
		handler = middleware.RateLimiter(deps.CacheClient, deps.RateLimit, deps.RateLimitInterval)(handler)
	}

	return handler
}

// PingHandler é uma função utilitária para o health check.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
