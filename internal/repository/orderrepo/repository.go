package orderrepo

import (
	"context"
	"database/sql"
	"time"

	"gocommerce/internal/domain"
	"gocommerce/internal/errors"
	"gocommerce/internal/pkg/logger"
)

// OrderRepository é a camada de persistência do agregado de pedido.
// Pedido e linhas são lidos/escritos como uma unidade: o Save substitui as
// linhas dentro da mesma transação do cabeçalho (as linhas são snapshots
// imutáveis, então o replace é seguro enquanto o pedido está OPEN).
type OrderRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewOrderRepository cria e retorna uma nova instância do Repositório de Pedidos.
func NewOrderRepository(db *sql.DB, dbTimeout time.Duration, log logger.Logger) *OrderRepository {
	return &OrderRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    log,
	}
}

// Save persiste o pedido e suas linhas (insert ou replace) em uma transação.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback() // Rollback em caso de erro

	const orderSQL = `
        INSERT INTO orders (id, customer_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET status = $3, updated_at = $5`

	if _, err := tx.ExecContext(ctxTimeout, orderSQL,
		order.ID, order.CustomerID, order.Status, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return errors.NewDBError("Falha ao salvar pedido", err)
	}

	// Substitui as linhas: como elas só mudam enquanto o pedido está OPEN,
	// o delete+insert espelha exatamente o estado do agregado em memória.
	if _, err := tx.ExecContext(ctxTimeout, `DELETE FROM order_line_items WHERE order_id = $1`, order.ID); err != nil {
		return errors.NewDBError("Falha ao limpar linhas do pedido", err)
	}

	const lineSQL = `
        INSERT INTO order_line_items (id, order_id, product_id, quantity_amount, quantity_metric, unit_price, product_name, position)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for idx, line := range order.LineItems {
		if _, err := tx.ExecContext(ctxTimeout, lineSQL,
			line.ID, order.ID, line.ProductID, line.Quantity.Amount, line.Quantity.Metric,
			line.UnitPrice, line.ProductName, idx,
		); err != nil {
			return errors.NewDBError("Falha ao salvar linha do pedido", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDBError("Falha ao commitar transação", err)
	}

	return nil
}

// UpdateStatusTx atualiza apenas o status do pedido dentro da transação
// informada. Usado pela unidade de trabalho da conclusão/cancelamento, que
// precisa que a transição e as escritas de inventário commitem juntas.
func (r *OrderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	const query = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := tx.ExecContext(ctx, query, order.Status, order.UpdatedAt, order.ID)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar status do pedido", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Pedido não encontrado para atualização de status.")
	}

	return nil
}

// FindByID busca um pedido e suas linhas pelo identificador.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT id, customer_id, status, created_at, updated_at
        FROM orders
        WHERE id = $1`

	var order domain.Order
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt, &order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Order{}, errors.NewNotFoundError("Pedido " + id + " não encontrado.")
	}
	if err != nil {
		r.logger.Error("Falha ao buscar pedido no DB.", err)
		return domain.Order{}, errors.NewDBError("Falha ao buscar pedido", err)
	}

	lines, err := r.findLineItems(ctxTimeout, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.LineItems = lines

	return order, nil
}

// FindByStatus retorna os pedidos no status informado, com suas linhas.
func (r *OrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	const query = `
        SELECT id, customer_id, status, created_at, updated_at
        FROM orders
        WHERE status = $1
        ORDER BY created_at DESC`

	return r.findOrders(ctx, query, string(status))
}

// FindByCustomer retorna os pedidos do cliente informado, com suas linhas.
func (r *OrderRepository) FindByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	const query = `
        SELECT id, customer_id, status, created_at, updated_at
        FROM orders
        WHERE customer_id = $1
        ORDER BY created_at DESC`

	return r.findOrders(ctx, query, customerID)
}

// findOrders executa uma busca parametrizada de pedidos e carrega as linhas de cada um.
func (r *OrderRepository) findOrders(ctx context.Context, query string, arg interface{}) ([]domain.Order, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctxTimeout, query, arg)
	if err != nil {
		return nil, errors.NewDBError("Falha ao buscar pedidos", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, errors.NewDBError("Falha ao ler pedido", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar pedidos", err)
	}

	for idx := range orders {
		lines, err := r.findLineItems(ctxTimeout, orders[idx].ID)
		if err != nil {
			return nil, err
		}
		orders[idx].LineItems = lines
	}

	return orders, nil
}

// findLineItems carrega as linhas de um pedido, na ordem de inserção.
func (r *OrderRepository) findLineItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	const query = `
        SELECT id, product_id, quantity_amount, quantity_metric, unit_price, product_name
        FROM order_line_items
        WHERE order_id = $1
        ORDER BY position ASC`

	rows, err := r.DB.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, errors.NewDBError("Falha ao buscar linhas do pedido", err)
	}
	defer rows.Close()

	lines := make([]domain.LineItem, 0)
	for rows.Next() {
		var line domain.LineItem
		if err := rows.Scan(
			&line.ID, &line.ProductID, &line.Quantity.Amount, &line.Quantity.Metric,
			&line.UnitPrice, &line.ProductName,
		); err != nil {
			return nil, errors.NewDBError("Falha ao ler linha do pedido", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar linhas do pedido", err)
	}

	return lines, nil
}
