package customerrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gocommerce/internal/domain"
	apperror "gocommerce/internal/errors"
	"gocommerce/internal/pkg/logger"
)

// CustomerRepository implementa a interface domain.CustomerRepository
type CustomerRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewCustomerRepository cria uma nova instância do CustomerRepository, injetando o DB.
func NewCustomerRepository(db *sql.DB, dbTimeout time.Duration, log logger.Logger) *CustomerRepository {
	return &CustomerRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    log,
	}
}

// Save insere um novo cliente no banco de dados.
func (r *CustomerRepository) Save(ctx domain.Context, customer domain.Customer) (domain.Customer, error) {
	r.logger.Debug("Iniciando Save de cliente no repositório.", map[string]interface{}{"email": customer.Email})

	// 1. Configura Contexto com Timeout
	ctxTimeout, cancel := context.WithTimeout(ctx.(context.Context), r.DBTimeout)
	defer cancel()

	// 2. Prepara dados e ID
	customer.ID = uuid.NewString()
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt

	// 3. Executa o INSERT
	const insertSQL = `INSERT INTO customers (id, email, name, password_hash, role, created_at, updated_at)
                       VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB.ExecContext(
		ctxTimeout,
		insertSQL,
		customer.ID,
		customer.Email,
		customer.Name,
		customer.PasswordHash,
		customer.Role,
		customer.CreatedAt,
		customer.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Falha ao inserir cliente no DB.", err)
		// Verifica se é um erro de duplicidade (ex: email já existe)
		// exigiria inspecionar o erro específico do driver (pq);
		// por enquanto, simplificamos como um erro interno de DB
		return domain.Customer{}, apperror.NewDBError("Falha ao inserir cliente", err)
	}

	r.logger.Info("Cliente salvo com sucesso no repositório.", map[string]interface{}{"customer_id": customer.ID, "email": customer.Email})
	return customer, nil
}

const selectSQL = `SELECT id, email, name, password_hash, role, created_at, updated_at FROM customers`

// FindByID busca um cliente pelo identificador.
func (r *CustomerRepository) FindByID(ctx domain.Context, id string) (domain.Customer, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx.(context.Context), r.DBTimeout)
	defer cancel()

	row := r.DB.QueryRowContext(ctxTimeout, selectSQL+` WHERE id = $1`, id)
	return r.scanCustomer(row, fmt.Sprintf("Cliente com ID '%s' não encontrado", id))
}

// FindByEmail busca um cliente pelo endereço de e-mail.
func (r *CustomerRepository) FindByEmail(ctx domain.Context, email string) (domain.Customer, error) {
	r.logger.Debug("Iniciando FindByEmail de cliente no repositório.", map[string]interface{}{"email_attempt": email})

	ctxTimeout, cancel := context.WithTimeout(ctx.(context.Context), r.DBTimeout)
	defer cancel()

	row := r.DB.QueryRowContext(ctxTimeout, selectSQL+` WHERE email = $1`, email)
	return r.scanCustomer(row, fmt.Sprintf("Cliente com email '%s' não encontrado", email))
}

// scanCustomer mapeia o resultado para a struct Customer, traduzindo ErrNoRows em 404.
func (r *CustomerRepository) scanCustomer(row *sql.Row, notFoundMsg string) (domain.Customer, error) {
	var customer domain.Customer
	err := row.Scan(
		&customer.ID,
		&customer.Email,
		&customer.Name,
		&customer.PasswordHash,
		&customer.Role,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, apperror.NewNotFoundError(notFoundMsg)
		}
		r.logger.Error("Falha ao buscar cliente no DB.", err)
		return domain.Customer{}, apperror.NewDBError("Falha ao buscar cliente", err)
	}

	return customer, nil
}
