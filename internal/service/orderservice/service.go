package orderservice

import (
	"context"
	"database/sql"
	"encoding/json"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
)

// OrderRepository define o contrato que o Serviço de Pedidos espera da
// camada de Persistência.
type OrderRepository interface {
	Save(ctx context.Context, order domain.Order) error
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, order domain.Order) error
	FindByID(ctx context.Context, id string) (domain.Order, error)
	FindByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)
	FindByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
}

// ProductRepository é o recorte do catálogo usado na criação de linhas:
// o serviço tira o snapshot de preço/nome do produto no momento da inserção.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (domain.Product, error)
}

// OutboxRepository grava eventos no registro durável de publicações, dentro
// da transação de negócio.
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

// InventoryManagement é o protocolo de verificação/atualização de estoque
// invocado na conclusão de pedidos. A implementação (inventoryservice)
// persiste a transição de status e os decrementos em UMA transação.
type InventoryManagement interface {
	VerifyAndUpdate(ctx domain.Context, order *domain.Order) (domain.OrderCompletionReport, error)
}

// Service orquestra o ciclo de vida dos pedidos: criação, manipulação de
// linhas enquanto OPEN e a máquina de estados OPEN → PAID → COMPLETED,
// com CANCELLED terminal.
type Service struct {
	orderRepo   OrderRepository
	productRepo ProductRepository
	outboxRepo  OutboxRepository
	txManager   TxManager
	channel     EventChannel
	inventory   InventoryManagement
	logger      logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Pedidos.
func NewService(
	orderRepo OrderRepository,
	productRepo ProductRepository,
	outboxRepo OutboxRepository,
	txManager TxManager,
	channel EventChannel,
	inventory InventoryManagement,
	log logger.Logger,
) *Service {
	return &Service{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		channel:     channel,
		inventory:   inventory,
		logger:      log,
	}
}

// contextFrom faz o cast do contexto de domínio, com fallback seguro.
func (s *Service) contextFrom(ctx domain.Context) context.Context {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		s.logger.Warn("Contexto de domínio inválido, usando context.Background().", nil)
		return context.Background()
	}
	return ctxGo
}

// Create abre um novo pedido OPEN para o cliente informado.
func (s *Service) Create(ctx domain.Context, customerID string) (domain.Order, error) {
	ctxGo := s.contextFrom(ctx)

	order, err := domain.NewOrder(customerID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.orderRepo.Save(ctxGo, order); err != nil {
		return domain.Order{}, err
	}

	s.logger.Info("Pedido criado.", map[string]interface{}{
		"order_id":    order.ID,
		"customer_id": customerID,
	})
	return order, nil
}

// AddLine adiciona uma linha ao pedido, com snapshot de preço e nome do
// produto tirado no momento da inserção. Permitido apenas enquanto OPEN.
func (s *Service) AddLine(ctx domain.Context, orderID, productID string, quantity domain.Quantity) (domain.Order, error) {
	ctxGo := s.contextFrom(ctx)

	order, err := s.orderRepo.FindByID(ctxGo, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	product, err := s.productRepo.FindByID(ctxGo, productID)
	if err != nil {
		return domain.Order{}, err
	}
	if !product.IsActive {
		return domain.Order{}, apperror.NewValidationError("O produto não está mais disponível para venda.")
	}

	if _, err := order.AddLine(product, quantity); err != nil {
		return domain.Order{}, err
	}

	if err := s.orderRepo.Save(ctxGo, order); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// RemoveLine remove uma linha do pedido. Permitido apenas enquanto OPEN.
func (s *Service) RemoveLine(ctx domain.Context, orderID, lineItemID string) (domain.Order, error) {
	ctxGo := s.contextFrom(ctx)

	order, err := s.orderRepo.FindByID(ctxGo, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.RemoveLine(lineItemID); err != nil {
		return domain.Order{}, err
	}

	if err := s.orderRepo.Save(ctxGo, order); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// MarkPaid transiciona o pedido para PAID e publica OrderPaid via outbox.
// Transição de status e evento commitam na mesma transação.
func (s *Service) MarkPaid(ctx domain.Context, orderID string) (domain.Order, error) {
	ctxGo := s.contextFrom(ctx)

	order, err := s.orderRepo.FindByID(ctxGo, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.MarkPaid(); err != nil {
		return domain.Order{}, err
	}

	if err := s.commitTransition(ctxGo, &order); err != nil {
		return domain.Order{}, err
	}

	s.logger.Info("Pedido marcado como pago.", map[string]interface{}{"order_id": order.ID})
	return order, nil
}

// Complete transiciona o pedido para COMPLETED executando o protocolo de
// verificação/atualização de estoque. O relatório composto descreve o
// resultado de cada linha; em caso de falha, nem a transição nem nenhum
// decremento é persistido (o pedido permanece PAID no banco).
func (s *Service) Complete(ctx domain.Context, orderID string) (domain.OrderCompletionReport, error) {
	ctxGo := s.contextFrom(ctx)

	order, err := s.orderRepo.FindByID(ctxGo, orderID)
	if err != nil {
		return domain.OrderCompletionReport{}, err
	}

	// Transição em memória: o evento OrderCompleted fica no buffer do
	// agregado e é drenado para o outbox dentro da transação de conclusão.
	if err := order.Complete(); err != nil {
		return domain.OrderCompletionReport{}, err
	}

	return s.inventory.VerifyAndUpdate(ctxGo, &order)
}

// Cancel transiciona o pedido para CANCELLED. A compensação de estoque é
// assíncrona: o assinante de OrderCanceled restoca as linhas de pedidos que
// haviam atingido COMPLETED.
func (s *Service) Cancel(ctx domain.Context, orderID, reason string) (domain.Order, error) {
	ctxGo := s.contextFrom(ctx)

	order, err := s.orderRepo.FindByID(ctxGo, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.Cancel(reason); err != nil {
		return domain.Order{}, err
	}

	if err := s.commitTransition(ctxGo, &order); err != nil {
		return domain.Order{}, err
	}

	s.logger.Info("Pedido cancelado.", map[string]interface{}{
		"order_id": order.ID,
		"reason":   reason,
	})
	return order, nil
}

// commitTransition grava a transição de status e os eventos pendentes do
// agregado na mesma transação, e cutuca o dispatcher após o commit.
func (s *Service) commitTransition(ctx context.Context, order *domain.Order) error {
	err := s.txManager.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.orderRepo.UpdateStatusTx(ctx, tx, *order); err != nil {
			return err
		}
		return s.outboxRepo.AppendTx(ctx, tx, order.PendingEvents(), s.channel)
	})
	if err != nil {
		return err
	}

	order.ClearEvents()
	s.channel.Notify()
	return nil
}

// FindByID busca um pedido pelo seu ID.
func (s *Service) FindByID(ctx domain.Context, orderID string) (domain.Order, error) {
	return s.orderRepo.FindByID(s.contextFrom(ctx), orderID)
}

// FindByStatus lista os pedidos no status informado.
func (s *Service) FindByStatus(ctx domain.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if !status.IsValid() {
		return nil, apperror.NewValidationError("Status de pedido inválido.")
	}
	return s.orderRepo.FindByStatus(s.contextFrom(ctx), status)
}

// FindByCustomer lista os pedidos de um cliente.
func (s *Service) FindByCustomer(ctx domain.Context, customerID string) ([]domain.Order, error) {
	return s.orderRepo.FindByCustomer(s.contextFrom(ctx), customerID)
}

// --- Handler de evento (assinado no main via eventbus.Dispatcher) ---

// Nome estável do handler de auditoria (marcador de entrega no outbox).
const HandlerAuditCompleted = "order.audit_completed"

// HandleOrderCompleted registra a conclusão no log de auditoria.
// A atualização de estoque acontece sincronamente dentro da transação de
// conclusão; este assinante existe para consumidores observacionais.
func (s *Service) HandleOrderCompleted(ctx context.Context, envelope eventbus.Envelope) error {
	var event domain.OrderCompleted
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return apperror.NewInternalError("Payload inválido para OrderCompleted.", err)
	}

	s.logger.Info("Pedido concluído (auditoria).", map[string]interface{}{
		"order_id":    event.OrderID,
		"customer_id": event.CustomerID,
		"occurred_at": event.OccurredAt,
	})
	return nil
}
