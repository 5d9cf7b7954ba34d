package domain

import "time"

// Customer representa o cliente que faz pedidos no sistema.
type Customer struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash string       `json:"-"` // Oculta o hash da senha no JSON de resposta
	Role         CustomerRole `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CustomerRole é um tipo string para representar o papel do cliente no sistema.
type CustomerRole string

// Constantes para os papéis (boas práticas)
const (
	RoleAdmin    CustomerRole = "admin"
	RoleCustomer CustomerRole = "customer"
)

// CustomerRegistration representa o payload de entrada para o registro.
type CustomerRegistration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CustomerRepository define o contrato de persistência para a entidade Customer.
type CustomerRepository interface {
	Save(ctx Context, customer Customer) (Customer, error)
	FindByID(ctx Context, id string) (Customer, error)
	FindByEmail(ctx Context, email string) (Customer, error)
}

// CustomerService define o contrato de lógica de negócio para a entidade Customer.
type CustomerService interface {
	Register(ctx Context, registration CustomerRegistration) (Customer, error)
	Login(ctx Context, email string, password string) (string, error)
}
