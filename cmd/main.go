package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	// Nossos pacotes de infraestrutura e utilitários
	"gocommerce/config"
	"gocommerce/internal/domain"
	"gocommerce/internal/pkg/cache"
	"gocommerce/internal/pkg/database"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
	"gocommerce/internal/pkg/token"

	// Camadas para Injeção de Dependências
	"gocommerce/internal/api/customer"
	"gocommerce/internal/api/inventory"
	"gocommerce/internal/api/order"
	"gocommerce/internal/api/product"
	"gocommerce/internal/api/router"
	"gocommerce/internal/repository/customerrepo"
	"gocommerce/internal/repository/inventoryrepo"
	"gocommerce/internal/repository/orderrepo"
	"gocommerce/internal/repository/outboxrepo"
	"gocommerce/internal/repository/productrepo"
	"gocommerce/internal/service/customerservice"
	"gocommerce/internal/service/inventoryservice"
	"gocommerce/internal/service/orderservice"
	"gocommerce/internal/service/productservice"
)

func main() {
	// 1. Configuração e Inicialização
	log.Println("⚡ Inicializando serviço GoCommerce...")
	// O godotenv.Load() procura por um arquivo chamado .env na raiz.
	if err := godotenv.Load(); err != nil {
		// Se o arquivo .env não for encontrado, avisamos mas continuamos,
		// pois as variáveis essenciais podem estar no ambiente do sistema (ex: Docker).
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	cfg := config.LoadConfig()
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("Configurações carregadas.", nil)

	// 2. Conexão com Recursos de Infraestrutura

	// A. Banco de Dados (PostgreSQL)
	db, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	// B. Cache (Redis)
	cacheClient := cache.NewRedisClient(cfg.RedisAddr)
	log.Info("Conexão Redis estabelecida.", nil)

	// C. Unidade de trabalho transacional
	txManager := database.NewTxManager(db, cfg.DBTimeout)

	// 3. INJEÇÃO DE DEPENDÊNCIAS (Montagem da Clean Architecture)
	// Ordem: Repository -> Dispatcher -> Service -> Handler

	// A. Repositórios (Camada de Acesso a Dados)
	outboxRepo := outboxrepo.NewOutboxRepository(db, cfg.DBTimeout, log)
	inventoryRepo := inventoryrepo.NewInventoryRepository(db, cfg.DBTimeout, log)
	orderRepo := orderrepo.NewOrderRepository(db, cfg.DBTimeout, log)
	productRepo := productrepo.NewProductRepository(db, cacheClient, cfg.DBTimeout)
	customerRepo := customerrepo.NewCustomerRepository(db, cfg.DBTimeout, log)
	log.Debug("Repositórios inicializados.", nil)

	// B. Dispatcher do outbox (canal de eventos durável)
	dispatcher := eventbus.NewDispatcher(outboxRepo, log, cfg.OutboxDispatchInterval, cfg.OutboxBatchSize)

	// C. Serviço de Tokens (JWT)
	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	log.Debug("Serviço de Tokens JWT inicializado.", nil)

	// D. Serviços (Camada de Lógica de Negócio)
	inventorySvc := inventoryservice.NewService(
		inventoryRepo, orderRepo, outboxRepo, txManager, dispatcher, cfg.RestockThreshold, log)
	orderSvc := orderservice.NewService(
		orderRepo, productRepo, outboxRepo, txManager, dispatcher, inventorySvc, log)
	productSvc := productservice.NewService(productRepo, outboxRepo, txManager, dispatcher, log)
	customerSvc := customerservice.NewService(customerRepo, tokenSvc)
	log.Debug("Serviços inicializados.", nil)

	// E. Assinaturas dos eventos de sincronização
	subscriptions := []struct {
		eventName   string
		handlerName string
		fn          eventbus.HandlerFunc
	}{
		{domain.EventProductAdded, inventoryservice.HandlerProvisionInventory, inventorySvc.HandleProductAdded},
		{domain.EventOrderCanceled, inventoryservice.HandlerRestockOnCancel, inventorySvc.HandleOrderCanceled},
		{domain.EventQuantityReduced, inventoryservice.HandlerStockShortPolicy, inventorySvc.HandleQuantityReduced},
		{domain.EventOrderCompleted, orderservice.HandlerAuditCompleted, orderSvc.HandleOrderCompleted},
	}
	for _, sub := range subscriptions {
		if err := dispatcher.Subscribe(sub.eventName, sub.handlerName, sub.fn); err != nil {
			log.Fatal("Falha ao assinar evento.", err)
		}
	}
	log.Debug("Assinaturas de eventos registradas.", nil)

	// F. Handlers (Camada de Apresentação)
	productHandler := product.NewHandler(productSvc, log)
	orderHandler := order.NewHandler(orderSvc, log)
	inventoryHandler := inventory.NewHandler(inventorySvc, log)
	customerHandler := customer.NewHandler(customerSvc, log)
	log.Debug("Handlers inicializados.", nil)

	// 4. Processos de fundo: dispatcher do outbox + varredura de estoque
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	go dispatcher.Run(runCtx)

	go func() {
		ticker := time.NewTicker(cfg.StockScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := inventorySvc.ReportOutOfStock(runCtx); err != nil {
					log.Error("Falha na varredura de itens fora de estoque.", err)
				}
			}
		}
	}()

	// 5. Configuração e Início do Roteador/Servidor
	r := router.NewRouter(router.Deps{
		ProductHandler:    productHandler,
		OrderHandler:      orderHandler,
		InventoryHandler:  inventoryHandler,
		CustomerHandler:   customerHandler,
		TokenSvc:          tokenSvc,
		CacheClient:       cacheClient,
		RateLimit:         cfg.RateLimitMaxRequests,
		RateLimitInterval: cfg.RateLimitPeriod,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Execução e Graceful Shutdown
	go func() {
		log.Info("Servidor GoCommerce ouvindo na porta", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Servidor falhou.", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Sinal de encerramento recebido. Desligando servidor...", nil)

	cancelRun() // Encerra o dispatcher e a varredura de estoque

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Desligamento do servidor forçado.", err)
	}

	log.Info("Servidor encerrado com sucesso.", nil)
}
