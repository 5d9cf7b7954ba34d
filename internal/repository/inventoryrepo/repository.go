package inventoryrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gocommerce/internal/domain"
	"gocommerce/internal/errors"
	"gocommerce/internal/pkg/logger"
)

// InventoryRepository é a camada de persistência do razão de inventário.
// O save usa Controle de Concorrência Otimista (OCC): a atualização checa a
// coluna 'version' lida e falha com ConflictError se outro escritor tiver
// passado na frente. O chamador deve então re-verificar com dados frescos,
// nunca sobrescrever às cegas.
type InventoryRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewInventoryRepository cria e retorna uma nova instância do Repositório de Inventário.
func NewInventoryRepository(db *sql.DB, dbTimeout time.Duration, log logger.Logger) *InventoryRepository {
	return &InventoryRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    log,
	}
}

const selectColumns = `id, product_id, quantity_amount, quantity_metric, version, created_at, updated_at`

// scanItem lê uma linha do resultado para o agregado de domínio.
func scanItem(row interface{ Scan(dest ...interface{}) error }) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := row.Scan(
		&item.ID, &item.ProductID, &item.Quantity.Amount, &item.Quantity.Metric,
		&item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}

// FindByProductID busca o item de inventário do produto informado.
// Um produto tem no máximo um item (modelo de inventário único).
func (r *InventoryRepository) FindByProductID(ctx context.Context, productID string) (domain.InventoryItem, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM inventory_items WHERE product_id = $1`, selectColumns)

	item, err := scanItem(r.DB.QueryRowContext(ctxTimeout, query, productID))
	if err == sql.ErrNoRows {
		return domain.InventoryItem{}, errors.NewNotFoundError(
			fmt.Sprintf("Item de inventário para o produto %s não encontrado.", productID))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar item de inventário no DB.", err)
		return domain.InventoryItem{}, errors.NewDBError("Falha ao buscar item de inventário", err)
	}

	return item, nil
}

// FindOutOfStock retorna todos os itens com quantidade em zero ou abaixo.
// Operação somente-leitura, sem mudança de estado: re-executar sem mutação
// retorna o mesmo conjunto.
func (r *InventoryRepository) FindOutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM inventory_items WHERE quantity_amount <= 0 ORDER BY product_id`, selectColumns)

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		return nil, errors.NewDBError("Falha ao buscar itens fora de estoque", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler item fora de estoque", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar itens fora de estoque", err)
	}

	return items, nil
}

// Create insere um novo item de inventário (provisionamento ou estocagem inicial).
func (r *InventoryRepository) Create(ctx context.Context, item domain.InventoryItem) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        INSERT INTO inventory_items (id, product_id, quantity_amount, quantity_metric, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB.ExecContext(ctxTimeout, query,
		item.ID, item.ProductID, item.Quantity.Amount, item.Quantity.Metric,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)

	return r.translateCreateErr(err)
}

// CreateTx insere um novo item de inventário dentro da transação informada.
// Usado pelo provisionamento, que precisa que o item e seus eventos commitem juntos.
func (r *InventoryRepository) CreateTx(ctx context.Context, tx *sql.Tx, item domain.InventoryItem) error {
	const query = `
        INSERT INTO inventory_items (id, product_id, quantity_amount, quantity_metric, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.ExecContext(ctx, query,
		item.ID, item.ProductID, item.Quantity.Amount, item.Quantity.Metric,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)

	return r.translateCreateErr(err)
}

// translateCreateErr traduz a violação de unicidade de product_id em
// ConflictError: dois escritores criando o item do mesmo produto ao mesmo
// tempo deixam o perdedor re-tentar contra o item que o vencedor inseriu.
func (r *InventoryRepository) translateCreateErr(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return errors.NewConflictError("Já existe item de inventário para este produto. Tente novamente.")
	}
	r.logger.Error("Falha ao inserir item de inventário.", err)
	return errors.NewDBError("Falha ao inserir item de inventário", err)
}

// Save persiste as mutações de um item existente com OCC, fora de transação
// compartilhada (abre a sua própria via ExecContext).
func (r *InventoryRepository) Save(ctx context.Context, item domain.InventoryItem) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctxTimeout, occUpdateSQL,
		item.Quantity.Amount, item.Quantity.Metric, item.Version+1, item.UpdatedAt,
		item.ID, item.Version,
	)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar item de inventário", err)
	}

	return r.checkOCC(result, item)
}

// SaveTx persiste as mutações de um item dentro da transação informada,
// com a mesma checagem de versão (OCC). Usado pela unidade de trabalho da
// conclusão de pedido, que precisa que todos os decrementos e a transição de
// status commitem juntos.
func (r *InventoryRepository) SaveTx(ctx context.Context, tx *sql.Tx, item domain.InventoryItem) error {
	result, err := tx.ExecContext(ctx, occUpdateSQL,
		item.Quantity.Amount, item.Quantity.Metric, item.Version+1, item.UpdatedAt,
		item.ID, item.Version,
	)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar item de inventário", err)
	}

	return r.checkOCC(result, item)
}

const occUpdateSQL = `
        UPDATE inventory_items
        SET quantity_amount = $1, quantity_metric = $2, version = $3, updated_at = $4
        WHERE id = $5 AND version = $6`

// checkOCC traduz "zero linhas afetadas" em ConflictError: o registro foi
// modificado por outra operação e o escritor atrasado deve re-tentar a
// verificação com dados frescos.
func (r *InventoryRepository) checkOCC(result sql.Result, item domain.InventoryItem) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}

	if rowsAffected == 0 {
		r.logger.Warn("Falha no controle de concorrência otimista (OCC). Versão do registro desatualizada.", map[string]interface{}{
			"inventory_item_id": item.ID,
			"product_id":        item.ProductID,
			"expected_version":  item.Version,
		})
		return errors.NewConflictError("O item de inventário foi modificado por outra operação. Tente novamente.")
	}

	return nil
}
