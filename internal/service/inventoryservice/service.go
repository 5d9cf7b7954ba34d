package inventoryservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
)

// InventoryRepository define o contrato que o Serviço de Inventário espera da
// camada de Persistência.
type InventoryRepository interface {
	FindByProductID(ctx context.Context, productID string) (domain.InventoryItem, error)
	FindOutOfStock(ctx context.Context) ([]domain.InventoryItem, error)
	CreateTx(ctx context.Context, tx *sql.Tx, item domain.InventoryItem) error
	Save(ctx context.Context, item domain.InventoryItem) error
	SaveTx(ctx context.Context, tx *sql.Tx, item domain.InventoryItem) error
}

// OrderRepository é o recorte do repositório de pedidos que este serviço usa:
// re-leitura por ID (nos handlers de evento) e escrita de status dentro da
// unidade de trabalho da conclusão.
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (domain.Order, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, order domain.Order) error
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

// EventChannel é o recorte do dispatcher usado pelo serviço: os nomes de
// handlers registrados (para os marcadores de entrega) e a cutucada
// pós-commit.
type EventChannel interface {
	HandlerNames(eventName string) []string
	Notify()
}

// Limite de re-tentativas quando um save perde a corrida de OCC.
const (
	maxOCCRetries    = 3
	occRetryInterval = 50 * time.Millisecond
)

// Service orquestra o protocolo de verificação/atualização de estoque:
// verificar-e-decrementar na conclusão de pedidos, restoque na compensação
// de cancelamentos, provisionamento de novos produtos e a política de alerta
// de estoque curto.
type Service struct {
	inventoryRepo InventoryRepository
	orderRepo     OrderRepository
	outboxRepo    OutboxRepository
	txManager     TxManager
	channel       EventChannel
	threshold     float64 // Limiar de restoque, aplicado na métrica de cada item
	logger        logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Inventário.
func NewService(
	inventoryRepo InventoryRepository,
	orderRepo OrderRepository,
	outboxRepo OutboxRepository,
	txManager TxManager,
	channel EventChannel,
	restockThreshold float64,
	log logger.Logger,
) *Service {
	return &Service{
		inventoryRepo: inventoryRepo,
		orderRepo:     orderRepo,
		outboxRepo:    outboxRepo,
		txManager:     txManager,
		channel:       channel,
		threshold:     restockThreshold,
		logger:        log,
	}
}

// VerifyAndUpdate verifica o estoque de cada linha do pedido e, somente se
// TODAS as linhas forem verificáveis, aplica todos os decrementos, grava a
// transição de status do pedido e os eventos, tudo em UMA transação.
//
// Semântica escolhida para a conclusão: nenhum decremento é aplicado se
// qualquer linha falhar; o relatório composto volta ao chamador com o motivo
// de cada linha. Conflitos de OCC re-executam a verificação inteira contra
// dados frescos, até o limite de re-tentativas.
//
// O pedido informado já deve ter transicionado para COMPLETED em memória
// (o evento OrderCompleted está no buffer do agregado e é drenado para o
// outbox aqui, junto com os QuantityReduced dos itens).
func (s *Service) VerifyAndUpdate(ctx domain.Context, order *domain.Order) (domain.OrderCompletionReport, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para VerifyAndUpdate", nil)
	}

	var report domain.OrderCompletionReport

	backoff := retry.WithMaxRetries(maxOCCRetries, retry.NewConstant(occRetryInterval))
	err := retry.Do(ctxGo, backoff, func(ctx context.Context) error {
		var attemptErr error
		report, attemptErr = s.verifyAndUpdateOnce(ctx, order)

		// Conflito de OCC: outro pedido tocou o mesmo item no meio tempo.
		// Re-verificamos tudo contra dados frescos.
		if _, isConflict := attemptErr.(*apperror.ConflictError); isConflict {
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})

	if err != nil {
		return report, err
	}

	s.logger.Info("Pedido concluído com estoque atualizado.", map[string]interface{}{
		"order_id": order.ID,
		"lines":    len(order.LineItems),
	})
	return report, nil
}

// verifyAndUpdateOnce é uma tentativa única de verificação + decremento.
func (s *Service) verifyAndUpdateOnce(ctx context.Context, order *domain.Order) (domain.OrderCompletionReport, error) {
	outcomes := make([]domain.LineOutcome, 0, len(order.LineItems))
	decremented := make([]domain.InventoryItem, 0, len(order.LineItems))

	// Fase 1: verificar todas as linhas (e preparar os decrementos em memória).
	for _, line := range order.LineItems {
		item, err := s.inventoryRepo.FindByProductID(ctx, line.ProductID)
		if err != nil {
			if _, notFound := err.(*apperror.NotFoundError); notFound {
				outcomes = append(outcomes, domain.ErrorOutcome(line, domain.ReasonNoInventoryItem))
				continue
			}
			return domain.OrderCompletionReport{}, err
		}

		sufficient, err := item.HasSufficientQuantity(line.Quantity)
		if err != nil {
			// Métrica incompatível entre linha e item: agregado como erro da linha.
			outcomes = append(outcomes, domain.ErrorOutcome(line, err.Error()))
			continue
		}
		if !sufficient {
			outcomes = append(outcomes, domain.ErrorOutcome(line, domain.ReasonInsufficientStock))
			continue
		}

		if err := item.Decrease(line.Quantity); err != nil {
			return domain.OrderCompletionReport{}, err
		}

		outcomes = append(outcomes, domain.SuccessOutcome(line))
		decremented = append(decremented, item)
	}

	report := domain.NewOrderCompletionReport(order.ID, outcomes)

	// Qualquer linha com erro falha a operação inteira. Como nada foi
	// persistido ainda, o estoque fica intocado.
	if report.HasErrors() {
		s.logger.Warn("Verificação de estoque falhou para o pedido.", map[string]interface{}{
			"order_id":     order.ID,
			"failed_lines": len(report.FailedOutcomes()),
		})
		return report, domain.NewOrderCompletionFailure(report)
	}

	// Fase 2: commit atômico (decrementos + status do pedido + eventos).
	events := make([]domain.Event, 0, len(order.PendingEvents())+len(decremented))
	events = append(events, order.PendingEvents()...)
	for idx := range decremented {
		events = append(events, decremented[idx].PendingEvents()...)
	}

	err := s.txManager.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, item := range decremented {
			if err := s.inventoryRepo.SaveTx(ctx, tx, item); err != nil {
				return err
			}
		}
		if err := s.orderRepo.UpdateStatusTx(ctx, tx, *order); err != nil {
			return err
		}
		return s.outboxRepo.AppendTx(ctx, tx, events, s.channel)
	})
	if err != nil {
		return report, err
	}

	// Pós-commit: drena os buffers e cutuca o dispatcher.
	order.ClearEvents()
	s.channel.Notify()

	return report, nil
}

// CancelOrder aplica a compensação de estoque de um pedido cancelado.
// Se o pedido nunca atingiu COMPLETED, nada foi decrementado e a operação é
// um no-op. Caso contrário, cada linha é restocada incondicionalmente: a
// simetria é garantida pela semântica tudo-ou-nada de VerifyAndUpdate: um
// pedido só chega a COMPLETED com todas as linhas decrementadas.
func (s *Service) CancelOrder(ctx domain.Context, orderID string, wasCompleted bool) error {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
		s.logger.Warn("Contexto de domínio inválido, usando context.Background() para CancelOrder", nil)
	}

	if !wasCompleted {
		s.logger.Debug("Pedido cancelado sem conclusão prévia; sem restoque.", map[string]interface{}{"order_id": orderID})
		return nil
	}

	order, err := s.orderRepo.FindByID(ctxGo, orderID)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(maxOCCRetries, retry.NewConstant(occRetryInterval))
	err = retry.Do(ctxGo, backoff, func(ctx context.Context) error {
		attemptErr := s.restockOnce(ctx, order)
		if _, isConflict := attemptErr.(*apperror.ConflictError); isConflict {
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})
	if err != nil {
		return err
	}

	s.logger.Info("Estoque restaurado para pedido cancelado.", map[string]interface{}{
		"order_id": order.ID,
		"lines":    len(order.LineItems),
	})
	return nil
}

// restockOnce é uma tentativa única de restoque de todas as linhas, em uma transação.
func (s *Service) restockOnce(ctx context.Context, order domain.Order) error {
	restocked := make([]domain.InventoryItem, 0, len(order.LineItems))

	for _, line := range order.LineItems {
		item, err := s.inventoryRepo.FindByProductID(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if err := item.Increase(line.Quantity); err != nil {
			return err
		}
		restocked = append(restocked, item)
	}

	return s.txManager.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, item := range restocked {
			if err := s.inventoryRepo.SaveTx(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// ProvisionFor garante que o produto informado tem exatamente um item de
// inventário, criando-o com quantidade zero na métrica do produto.
// Idempotente: se o item já existe (e.g., re-entrega at-least-once do evento
// ProductAdded), nada acontece.
func (s *Service) ProvisionFor(ctx domain.Context, productID string, metric domain.Metric) error {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if _, err := s.inventoryRepo.FindByProductID(ctxGo, productID); err == nil {
		s.logger.Debug("Item de inventário já provisionado.", map[string]interface{}{"product_id": productID})
		return nil
	} else if _, notFound := err.(*apperror.NotFoundError); !notFound {
		return err
	}

	item := domain.NewInventoryItem(productID, domain.ZeroQuantity(metric))
	item.RegisterEvent(domain.NewInventoryItemAdded(item.ID, productID))

	err := s.txManager.WithinTx(ctxGo, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.inventoryRepo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		return s.outboxRepo.AppendTx(ctx, tx, item.PendingEvents(), s.channel)
	})
	if err != nil {
		return err
	}

	s.channel.Notify()
	s.logger.Info("Item de inventário provisionado para novo produto.", map[string]interface{}{
		"product_id":        productID,
		"inventory_item_id": item.ID,
	})
	return nil
}

// EvaluateRestockThreshold é a política de alerta de estoque curto:
// compara a quantidade restante com o limiar configurado (na métrica do
// item) e, abaixo dele, emite StockShort. Avaliação pura, sem nenhum efeito
// colateral além da emissão.
func (s *Service) EvaluateRestockThreshold(ctx domain.Context, event domain.QuantityReduced) error {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	threshold := domain.NewQuantity(s.threshold, event.RemainingQuantity.Metric)

	atOrAbove, err := event.RemainingQuantity.IsGreaterThanOrEqualTo(threshold)
	if err != nil {
		return err
	}
	if atOrAbove {
		return nil
	}

	alert := domain.NewStockShort(event.ProductID, event.RemainingQuantity, threshold)

	err = s.txManager.WithinTx(ctxGo, func(ctx context.Context, tx *sql.Tx) error {
		return s.outboxRepo.AppendTx(ctx, tx, []domain.Event{alert}, s.channel)
	})
	if err != nil {
		return err
	}

	s.channel.Notify()
	s.logger.Warn("Estoque abaixo do limiar de restoque.", map[string]interface{}{
		"product_id": event.ProductID,
		"current":    event.RemainingQuantity.String(),
		"threshold":  threshold.String(),
	})
	return nil
}

// Stock é a estocagem explícita, fora do fluxo de pedidos: aumenta o estoque
// de um produto já provisionado ou, se o produto ainda não tem item, cria um
// com a quantidade informada.
func (s *Service) Stock(ctx domain.Context, productID string, quantity domain.Quantity) (domain.InventoryItem, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}

	if quantity.IsZeroOrNegative() {
		return domain.InventoryItem{}, apperror.NewValidationError("A quantidade de estocagem deve ser positiva.")
	}

	var item domain.InventoryItem
	backoff := retry.WithMaxRetries(maxOCCRetries, retry.NewConstant(occRetryInterval))
	err := retry.Do(ctxGo, backoff, func(ctx context.Context) error {
		var attemptErr error
		item, attemptErr = s.inventoryRepo.FindByProductID(ctx, productID)
		if attemptErr != nil {
			if _, isNotFound := attemptErr.(*apperror.NotFoundError); isNotFound {
				attemptErr = s.createStockedItem(ctx, productID, quantity, &item)
				// Outro escritor criou o item entre a busca e o insert:
				// re-tenta contra o item que agora existe.
				if _, isConflict := attemptErr.(*apperror.ConflictError); isConflict {
					return retry.RetryableError(attemptErr)
				}
			}
			return attemptErr
		}
		if attemptErr = item.Increase(quantity); attemptErr != nil {
			return attemptErr
		}

		attemptErr = s.inventoryRepo.Save(ctx, item)
		if _, isConflict := attemptErr.(*apperror.ConflictError); isConflict {
			return retry.RetryableError(attemptErr)
		}
		if attemptErr == nil {
			item.Version++ // Reflete a versão persistida pelo save
		}
		return attemptErr
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	return item, nil
}

// createStockedItem cria o item de inventário pela estocagem explícita,
// gravando o InventoryItemAdded no outbox na mesma transação do insert.
func (s *Service) createStockedItem(ctx context.Context, productID string, quantity domain.Quantity, out *domain.InventoryItem) error {
	item := domain.NewInventoryItem(productID, quantity)
	item.RegisterEvent(domain.NewInventoryItemAdded(item.ID, item.ProductID))

	err := s.txManager.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.inventoryRepo.CreateTx(ctx, tx, item); err != nil {
			return err
		}
		return s.outboxRepo.AppendTx(ctx, tx, item.PendingEvents(), s.channel)
	})
	if err != nil {
		return err
	}

	item.ClearEvents()
	s.channel.Notify()
	*out = item
	return nil
}

// FindByProduct expõe a consulta de item de inventário por produto.
func (s *Service) FindByProduct(ctx domain.Context, productID string) (domain.InventoryItem, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}
	return s.inventoryRepo.FindByProductID(ctxGo, productID)
}

// FindOutOfStock é a varredura de itens fora de estoque (quantidade <= 0).
// Somente leitura, sem mudança de estado.
func (s *Service) FindOutOfStock(ctx domain.Context) ([]domain.InventoryItem, error) {
	ctxGo, ok := ctx.(context.Context)
	if !ok {
		ctxGo = context.Background()
	}
	return s.inventoryRepo.FindOutOfStock(ctxGo)
}

// ReportOutOfStock roda a varredura e loga cada item fora de estoque.
// Chamado periodicamente a partir do main (relatório operacional).
func (s *Service) ReportOutOfStock(ctx domain.Context) error {
	items, err := s.FindOutOfStock(ctx)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return nil
	}

	s.logger.Info(fmt.Sprintf("Itens fora de estoque: %d", len(items)), nil)
	for _, item := range items {
		s.logger.Info("Item fora de estoque.", map[string]interface{}{
			"product_id": item.ProductID,
			"quantity":   item.Quantity.String(),
		})
	}
	return nil
}

// --- Handlers de evento (assinados no main via eventbus.Dispatcher) ---

// Nomes estáveis dos handlers deste serviço (marcadores de entrega no outbox).
const (
	HandlerProvisionInventory = "inventory.provision"
	HandlerRestockOnCancel    = "inventory.restock_on_cancel"
	HandlerStockShortPolicy   = "inventory.stock_short_policy"
)

// HandleProductAdded provisiona o item de inventário de um produto recém-registrado.
func (s *Service) HandleProductAdded(ctx context.Context, envelope eventbus.Envelope) error {
	var event domain.ProductAdded
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return apperror.NewInternalError("Payload inválido para ProductAdded.", err)
	}
	return s.ProvisionFor(ctx, event.ProductID, event.Metric)
}

// HandleOrderCanceled aplica a compensação de estoque de um pedido cancelado.
func (s *Service) HandleOrderCanceled(ctx context.Context, envelope eventbus.Envelope) error {
	var event domain.OrderCanceled
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return apperror.NewInternalError("Payload inválido para OrderCanceled.", err)
	}
	return s.CancelOrder(ctx, event.OrderID, event.WasCompleted)
}

// HandleQuantityReduced avalia a política de limiar de restoque.
func (s *Service) HandleQuantityReduced(ctx context.Context, envelope eventbus.Envelope) error {
	var event domain.QuantityReduced
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return apperror.NewInternalError("Payload inválido para QuantityReduced.", err)
	}
	return s.EvaluateRestockThreshold(ctx, event)
}
