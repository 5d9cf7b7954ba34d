package productservice_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/database"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
	"gocommerce/internal/service/productservice"
)

// Garante em tempo de compilação que o gerenciador de transações concreto
// satisfaz o contrato local do serviço.
var _ productservice.TxManager = (*database.SQLTxManager)(nil)

// MockProductRepository é uma implementação mock da interface ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) SaveTx(ctx context.Context, tx *sql.Tx, product domain.Product) (domain.Product, error) {
	args := m.Called(ctx, tx, product)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, product domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

// MockOutboxRepository é o mock do registro durável de publicações
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) AppendTx(ctx context.Context, tx *sql.Tx, events []domain.Event, registry eventbus.Registry) error {
	args := m.Called(ctx, tx, events, registry)
	return args.Error(0)
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

func newTestService() (*productservice.Service, *MockProductRepository, *MockOutboxRepository, *stubChannel) {
	repo := new(MockProductRepository)
	outbox := new(MockOutboxRepository)
	channel := &stubChannel{}
	svc := productservice.NewService(repo, outbox, &stubTxManager{}, channel, logger.NewLogger("debug"))
	return svc, repo, outbox, channel
}

// TestCreateProduct_PublishesProductAdded testa que o registro grava o produto
// e o evento ProductAdded (com a métrica) na mesma unidade de trabalho.
func TestCreateProduct_PublishesProductAdded(t *testing.T) {
	svc, repo, outbox, channel := newTestService()

	input := domain.Product{
		SKU:    "CAFE-01",
		Name:   "Café Especial",
		Price:  42.50,
		Metric: domain.MetricKilogram,
	}

	repo.On("SaveTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
		return p.ID != "" && p.IsActive
	})).Return(input, nil)
	outbox.On("AppendTx", mock.Anything, mock.Anything, mock.MatchedBy(func(events []domain.Event) bool {
		if len(events) != 1 {
			return false
		}
		added, ok := events[0].(domain.ProductAdded)
		return ok && added.Metric == domain.MetricKilogram
	}), mock.Anything).Return(nil)

	created, err := svc.CreateProduct(context.Background(), input)

	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, 1, channel.notified)
	repo.AssertExpectations(t)
	outbox.AssertExpectations(t)
}

// TestCreateProduct_RejectsUnknownMetric testa a validação da métrica no registro.
func TestCreateProduct_RejectsUnknownMetric(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.CreateProduct(context.Background(), domain.Product{
		SKU:    "CAFE-01",
		Name:   "Café Especial",
		Price:  42.50,
		Metric: domain.Metric("gallon"),
	})

	var validation *apperror.ValidationError
	assert.ErrorAs(t, err, &validation)
	repo.AssertNotCalled(t, "SaveTx", mock.Anything, mock.Anything, mock.Anything)
}

// TestGetProductByID_ValidatesUUID testa a validação de formato do ID.
func TestGetProductByID_ValidatesUUID(t *testing.T) {
	svc, repo, _, _ := newTestService()

	_, err := svc.GetProductByID(context.Background(), "nao-é-uuid")

	var validation *apperror.ValidationError
	assert.ErrorAs(t, err, &validation)
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// TestUpdateProduct_MetricImmutable testa que a atualização preserva a métrica
// registrada, mesmo que o payload traga outra.
func TestUpdateProduct_MetricImmutable(t *testing.T) {
	svc, repo, _, _ := newTestService()

	id := uuid.New().String()
	stored := domain.Product{
		ID: id, SKU: "CAFE-01", Name: "Café", Price: 40,
		Metric: domain.MetricKilogram, IsActive: true,
	}

	repo.On("FindByID", mock.Anything, id).Return(stored, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(p domain.Product) bool {
		return p.Metric == domain.MetricKilogram && p.Price == 45
	})).Return(nil)

	updated, err := svc.UpdateProduct(context.Background(), domain.Product{
		ID: id, Name: "Café Premium", Price: 45,
		Metric: domain.MetricLiter, // Ignorado: a métrica é imutável
		IsActive: true,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.MetricKilogram, updated.Metric)
	repo.AssertExpectations(t)
}
