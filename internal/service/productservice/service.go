package productservice

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
)

// ProductRepository define o contrato (interface) que este Serviço espera
// da camada de Persistência (DB, Cache).
type ProductRepository interface {
	SaveTx(ctx context.Context, tx *sql.Tx, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, id string) (domain.Product, error)
	FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, product domain.Product) error
}

// OutboxRepository grava eventos no registro durável de publicações.
type OutboxRepository interface {
	AppendTx(ctx context.Context, tx *sql.Tx, events []domain.Event, registry eventbus.Registry) error
}

// TxManager é a unidade de trabalho explícita (ver internal/pkg/database).
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}

// EventChannel é o recorte do dispatcher usado pelo serviço.
type EventChannel interface {
	HandlerNames(eventName string) []string
	Notify()
}

// Service implementa o registro e a consulta do catálogo de produtos.
// O registro publica ProductAdded via outbox, na mesma transação do insert;
// o assinante de inventário provisiona então o item de estoque do produto.
type Service struct {
	repo       ProductRepository
	outboxRepo OutboxRepository
	txManager  TxManager
	channel    EventChannel
	logger     logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Produto.
func NewService(repo ProductRepository, outboxRepo OutboxRepository, txManager TxManager, channel EventChannel, log logger.Logger) *Service {
	return &Service{
		repo:       repo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		channel:    channel,
		logger:     log,
	}
}

// CreateProduct registra um novo produto no catálogo.
func (s *Service) CreateProduct(ctx domain.Context, product domain.Product) (domain.Product, error) {
	// 1. Casting e Contexto
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	// 2. Validação de Regras de Negócio
	if product.Name == "" || product.SKU == "" {
		return domain.Product{}, apperror.NewValidationError("Nome e SKU são obrigatórios para o produto.")
	}
	if product.Price <= 0 {
		return domain.Product{}, apperror.NewValidationError("O preço do produto deve ser positivo.")
	}
	if !product.Metric.IsValid() {
		return domain.Product{}, apperror.NewValidationError(fmt.Sprintf("Métrica desconhecida: %q.", product.Metric))
	}

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.IsActive = true
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	// 3. Insert do produto + ProductAdded no outbox, na mesma transação.
	event := domain.NewProductAdded(product.ID, product.Metric)
	err := s.txManager.WithinTx(ctxGo, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.repo.SaveTx(ctx, tx, product); err != nil {
			return err
		}
		return s.outboxRepo.AppendTx(ctx, tx, []domain.Event{event}, s.channel)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("falha ao salvar produto no repositório: %w", err)
	}

	s.channel.Notify()
	s.logger.Info("Produto registrado no catálogo.", map[string]interface{}{
		"product_id": product.ID,
		"sku":        product.SKU,
		"metric":     string(product.Metric),
	})
	return product, nil
}

// GetProductByID busca um produto pelo seu ID.
func (s *Service) GetProductByID(ctx domain.Context, id string) (domain.Product, error) {
	// 1. Validação de Formato (Business Logic)
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, apperror.NewValidationError("O ID do produto deve ser um UUID válido.")
	}

	// 2. Casting e Configuração do Contexto (Converte domain.Context para context.Context)
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	// 3. Delegação para o Repositório
	return s.repo.FindByID(ctxGo, id)
}

// ListProducts lista o catálogo com o filtro informado (nome, SKU, ativo, paginação).
func (s *Service) ListProducts(ctx domain.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	return s.repo.FindAll(ctxGo, filter)
}

// UpdateProduct atualiza os dados editáveis de um produto.
// A métrica é imutável: pedidos e inventário já conversam na métrica
// registrada, então ela nunca muda depois do registro.
func (s *Service) UpdateProduct(ctx domain.Context, product domain.Product) (domain.Product, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if product.Name == "" {
		return domain.Product{}, apperror.NewValidationError("O nome do produto é obrigatório.")
	}
	if product.Price <= 0 {
		return domain.Product{}, apperror.NewValidationError("O preço do produto deve ser positivo.")
	}

	current, err := s.repo.FindByID(ctxGo, product.ID)
	if err != nil {
		return domain.Product{}, err
	}

	current.Name = product.Name
	current.Description = product.Description
	current.Price = product.Price
	current.IsActive = product.IsActive
	current.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctxGo, current); err != nil {
		return domain.Product{}, err
	}

	return current, nil
}
