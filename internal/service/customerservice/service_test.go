package customerservice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/token"
	"gocommerce/internal/service/customerservice"
)

// MockCustomerRepository é uma implementação mock da interface domain.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx domain.Context, customer domain.Customer) (domain.Customer, error) {
	args := m.Called(ctx, customer)
	return args.Get(0).(domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByID(ctx domain.Context, id string) (domain.Customer, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByEmail(ctx domain.Context, email string) (domain.Customer, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.Customer), args.Error(1)
}

// MockTokenService é o mock da camada de emissão de JWT.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) GenerateToken(customerID string, customerRole string) (string, error) {
	args := m.Called(customerID, customerRole)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) ValidateToken(tokenString string) (*token.CustomClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.CustomClaims), args.Error(1)
}

// TestRegister_Success_HashesPasswordAndDefaultsRole testa que o registro
// nunca persiste a senha em claro e atribui o papel padrão de cliente.
func TestRegister_Success_HashesPasswordAndDefaultsRole(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := customerservice.NewService(repo, new(MockTokenService))

	registration := domain.CustomerRegistration{
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Password: "senha-forte-123",
	}

	repo.On("Save", mock.Anything, mock.MatchedBy(func(c domain.Customer) bool {
		if c.Role != domain.RoleCustomer || c.PasswordHash == registration.Password {
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(registration.Password)) == nil
	})).Return(domain.Customer{ID: "cust-1", Email: registration.Email, Role: domain.RoleCustomer}, nil)

	customer, err := svc.Register(context.Background(), registration)

	assert.NoError(t, err)
	assert.Equal(t, "cust-1", customer.ID)
	repo.AssertExpectations(t)
}

// TestRegister_DuplicateEmail_ReturnsConflict testa a tradução do erro de
// banco (e-mail duplicado) para um Conflito de negócio.
func TestRegister_DuplicateEmail_ReturnsConflict(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := customerservice.NewService(repo, new(MockTokenService))

	repo.On("Save", mock.Anything, mock.Anything).
		Return(domain.Customer{}, apperror.NewInternalError("unique violation", nil))

	_, err := svc.Register(context.Background(), domain.CustomerRegistration{
		Email:    "maria@example.com",
		Password: "senha-forte-123",
	})

	var conflict *apperror.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

// TestLogin_Success testa o fluxo feliz: senha correta gera um JWT.
func TestLogin_Success(t *testing.T) {
	repo := new(MockCustomerRepository)
	tokenSvc := new(MockTokenService)
	svc := customerservice.NewService(repo, tokenSvc)

	hash, _ := bcrypt.GenerateFromPassword([]byte("senha-forte-123"), bcrypt.MinCost)
	repo.On("FindByEmail", mock.Anything, "maria@example.com").Return(domain.Customer{
		ID:           "cust-1",
		Email:        "maria@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
	}, nil)
	tokenSvc.On("GenerateToken", "cust-1", string(domain.RoleCustomer)).Return("jwt-token", nil)

	accessToken, err := svc.Login(context.Background(), "maria@example.com", "senha-forte-123")

	assert.NoError(t, err)
	assert.Equal(t, "jwt-token", accessToken)
	tokenSvc.AssertExpectations(t)
}

// TestLogin_WrongPassword_ReturnsUnauthorized testa a rejeição de senha incorreta.
func TestLogin_WrongPassword_ReturnsUnauthorized(t *testing.T) {
	repo := new(MockCustomerRepository)
	tokenSvc := new(MockTokenService)
	svc := customerservice.NewService(repo, tokenSvc)

	hash, _ := bcrypt.GenerateFromPassword([]byte("senha-forte-123"), bcrypt.MinCost)
	repo.On("FindByEmail", mock.Anything, "maria@example.com").Return(domain.Customer{
		ID:           "cust-1",
		PasswordHash: string(hash),
	}, nil)

	_, err := svc.Login(context.Background(), "maria@example.com", "senha-errada")

	var unauthorized *apperror.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
	tokenSvc.AssertNotCalled(t, "GenerateToken", mock.Anything, mock.Anything)
}

// TestLogin_UnknownEmail_DoesNotLeakExistence testa que um e-mail desconhecido
// devolve o mesmo erro genérico de credenciais inválidas.
func TestLogin_UnknownEmail_DoesNotLeakExistence(t *testing.T) {
	repo := new(MockCustomerRepository)
	svc := customerservice.NewService(repo, new(MockTokenService))

	repo.On("FindByEmail", mock.Anything, "fantasma@example.com").
		Return(domain.Customer{}, apperror.NewNotFoundError("cliente não encontrado"))

	_, err := svc.Login(context.Background(), "fantasma@example.com", "qualquer")

	var unauthorized *apperror.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
	assert.Contains(t, err.Error(), "Credenciais inválidas")
}
