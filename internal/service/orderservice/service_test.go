package orderservice_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/database"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
	"gocommerce/internal/service/orderservice"
)

// Garante em tempo de compilação que o gerenciador de transações concreto
// satisfaz o contrato local do serviço.
var _ orderservice.TxManager = (*database.SQLTxManager)(nil)

// MockOrderRepository é uma implementação mock da interface OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, order domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).([]domain.Order), args.Error(1)
}

// MockProductRepository é o mock do recorte de catálogo usado pelo serviço
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

// MockOutboxRepository é o mock do registro durável de publicações
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) AppendTx(ctx context.Context, tx *sql.Tx, events []domain.Event, registry eventbus.Registry) error {
	args := m.Called(ctx, tx, events, registry)
	return args.Error(0)
}

// MockInventoryManagement é o mock do protocolo de verificação de estoque
type MockInventoryManagement struct {
	mock.Mock
}

func (m *MockInventoryManagement) VerifyAndUpdate(ctx domain.Context, order *domain.Order) (domain.OrderCompletionReport, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(domain.OrderCompletionReport), args.Error(1)
}

// stubTxManager executa a função transacional diretamente (sem DB real).
type stubTxManager struct{}

func (s *stubTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return fn(ctx, nil)
}

// stubChannel registra cutucadas e devolve nomes de handler fixos.
type stubChannel struct {
	notified int
}

func (s *stubChannel) HandlerNames(eventName string) []string { return []string{"test-handler"} }
func (s *stubChannel) Notify()                                { s.notified++ }

type testDeps struct {
	orderRepo   *MockOrderRepository
	productRepo *MockProductRepository
	outboxRepo  *MockOutboxRepository
	channel     *stubChannel
	inventory   *MockInventoryManagement
}

func newTestService() (*orderservice.Service, testDeps) {
	deps := testDeps{
		orderRepo:   new(MockOrderRepository),
		productRepo: new(MockProductRepository),
		outboxRepo:  new(MockOutboxRepository),
		channel:     &stubChannel{},
		inventory:   new(MockInventoryManagement),
	}
	svc := orderservice.NewService(
		deps.orderRepo, deps.productRepo, deps.outboxRepo, &stubTxManager{},
		deps.channel, deps.inventory, logger.NewLogger("debug"))
	return svc, deps
}

func activeProduct() domain.Product {
	return domain.Product{
		ID:       "prod-1",
		SKU:      "SKU-1",
		Name:     "Produto Teste",
		Price:    25,
		Metric:   domain.MetricUnit,
		IsActive: true,
	}
}

// TestCreate_Success testa a abertura de um pedido OPEN para o cliente.
func TestCreate_Success(t *testing.T) {
	svc, deps := newTestService()

	deps.orderRepo.On("Save", mock.Anything, mock.MatchedBy(func(order domain.Order) bool {
		return order.IsOpen() && order.CustomerID == "customer-1"
	})).Return(nil)

	order, err := svc.Create(context.Background(), "customer-1")

	assert.NoError(t, err)
	assert.True(t, order.IsOpen())
	deps.orderRepo.AssertExpectations(t)
}

// TestCreate_RequiresCustomer testa a validação de cliente obrigatório.
func TestCreate_RequiresCustomer(t *testing.T) {
	svc, deps := newTestService()

	_, err := svc.Create(context.Background(), "")

	var validation *apperror.ValidationError
	assert.ErrorAs(t, err, &validation)
	deps.orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// TestAddLine_Success testa a inserção de linha com snapshot do catálogo.
func TestAddLine_Success(t *testing.T) {
	svc, deps := newTestService()

	order, _ := domain.NewOrder("customer-1")
	deps.orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	deps.productRepo.On("FindByID", mock.Anything, "prod-1").Return(activeProduct(), nil)
	deps.orderRepo.On("Save", mock.Anything, mock.MatchedBy(func(saved domain.Order) bool {
		return len(saved.LineItems) == 1 && saved.LineItems[0].UnitPrice == 25
	})).Return(nil)

	updated, err := svc.AddLine(context.Background(), order.ID, "prod-1", domain.NewQuantity(2, domain.MetricUnit))

	assert.NoError(t, err)
	assert.Equal(t, 50.0, updated.Total())
	deps.orderRepo.AssertExpectations(t)
}

// TestAddLine_InactiveProduct testa que produtos desativados não entram em pedidos.
func TestAddLine_InactiveProduct(t *testing.T) {
	svc, deps := newTestService()

	order, _ := domain.NewOrder("customer-1")
	inactive := activeProduct()
	inactive.IsActive = false

	deps.orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	deps.productRepo.On("FindByID", mock.Anything, "prod-1").Return(inactive, nil)

	_, err := svc.AddLine(context.Background(), order.ID, "prod-1", domain.NewQuantity(1, domain.MetricUnit))

	var validation *apperror.ValidationError
	assert.ErrorAs(t, err, &validation)
	deps.orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// TestMarkPaid_CommitsStatusAndEventTogether testa que a transição OPEN → PAID
// grava status e OrderPaid na mesma unidade de trabalho e cutuca o dispatcher.
func TestMarkPaid_CommitsStatusAndEventTogether(t *testing.T) {
	svc, deps := newTestService()

	order, _ := domain.NewOrder("customer-1")
	deps.orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	deps.orderRepo.On("UpdateStatusTx", mock.Anything, mock.Anything, mock.MatchedBy(func(saved domain.Order) bool {
		return saved.IsPaid()
	})).Return(nil)
	deps.outboxRepo.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(events []domain.Event) bool {
		return len(events) == 1 && events[0].EventName() == domain.EventOrderPaid
	}), mock.Anything).Return(nil)

	paid, err := svc.MarkPaid(context.Background(), order.ID)

	assert.NoError(t, err)
	assert.True(t, paid.IsPaid())
	assert.Equal(t, 1, deps.channel.notified)
	deps.orderRepo.AssertExpectations(t)
	deps.outboxRepo.AssertExpectations(t)
}

// TestComplete_DelegatesToInventory testa que a conclusão transiciona o
// agregado em memória e delega a persistência ao protocolo de estoque.
func TestComplete_DelegatesToInventory(t *testing.T) {
	svc, deps := newTestService()

	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.MarkPaid())
	order.ClearEvents()

	deps.orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)

	expected := domain.NewOrderCompletionReport(order.ID, []domain.LineOutcome{})
	deps.inventory.On("VerifyAndUpdate", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		// O agregado já chega ao protocolo na transição COMPLETED, com o
		// evento OrderCompleted no buffer.
		if !o.IsCompleted() {
			return false
		}
		events := o.PendingEvents()
		return len(events) == 1 && events[0].EventName() == domain.EventOrderCompleted
	})).Return(expected, nil)

	report, err := svc.Complete(context.Background(), order.ID)

	assert.NoError(t, err)
	assert.Equal(t, order.ID, report.OrderID)
	deps.inventory.AssertExpectations(t)
}

// TestComplete_RequiresPaid testa que concluir um pedido OPEN falha antes de
// tocar o protocolo de estoque.
func TestComplete_RequiresPaid(t *testing.T) {
	svc, deps := newTestService()

	order, _ := domain.NewOrder("customer-1")
	deps.orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)

	_, err := svc.Complete(context.Background(), order.ID)

	var transition *apperror.StateTransitionError
	assert.ErrorAs(t, err, &transition)
	deps.inventory.AssertNotCalled(t, "VerifyAndUpdate", mock.Anything, mock.Anything)
}

// TestCancel_PublishesCanceledEvent testa o cancelamento de um pedido pago:
// OrderCompleted sintetizado + OrderCanceled com WasCompleted=false.
func TestCancel_PublishesCanceledEvent(t *testing.T) {
	svc, deps := newTestService()

	order, _ := domain.NewOrder("customer-1")
	assert.NoError(t, order.MarkPaid())
	order.ClearEvents()

	deps.orderRepo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	deps.orderRepo.On("UpdateStatusTx", mock.Anything, mock.Anything, mock.MatchedBy(func(saved domain.Order) bool {
		return saved.IsCanceled()
	})).Return(nil)
	deps.outboxRepo.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(events []domain.Event) bool {
		if len(events) != 2 {
			return false
		}
		canceled, ok := events[1].(domain.OrderCanceled)
		return events[0].EventName() == domain.EventOrderCompleted && ok && !canceled.WasCompleted
	}), mock.Anything).Return(nil)

	canceled, err := svc.Cancel(context.Background(), order.ID, "cliente desistiu")

	assert.NoError(t, err)
	assert.True(t, canceled.IsCanceled())
	assert.Equal(t, 1, deps.channel.notified)
	deps.outboxRepo.AssertExpectations(t)
}

// TestFindByStatus_RejectsUnknownStatus testa a validação do filtro de status.
func TestFindByStatus_RejectsUnknownStatus(t *testing.T) {
	svc, deps := newTestService()

	_, err := svc.FindByStatus(context.Background(), domain.OrderStatus("SHIPPED"))

	var validation *apperror.ValidationError
	assert.ErrorAs(t, err, &validation)
	deps.orderRepo.AssertNotCalled(t, "FindByStatus", mock.Anything, mock.Anything)
}
