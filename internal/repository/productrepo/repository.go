package productrepo

import (
	"context" // Usamos o pacote context do Go
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gocommerce/internal/domain"
	"gocommerce/internal/errors"
	"gocommerce/internal/pkg/cache"
)

// ProductRepository implementa a persistência do catálogo de produtos.
// Ela contém as conexões necessárias para acessar dados.
type ProductRepository struct {
	DB        *sql.DB      // Conexão principal com o banco de dados (PostgreSQL)
	Cache     cache.Client // Cliente para operações de cache (Redis)
	DBTimeout time.Duration
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
// Aqui injetamos as dependências de Infraestrutura (DB e Cache).
func NewProductRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
	}
}

const insertProductSQL = `INSERT INTO products (id, sku, name, description, price, metric, is_active, created_at, updated_at)
                        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

// Save persiste um novo Produto no banco de dados.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(ctxTimeout, insertProductSQL,
		product.ID,
		product.SKU,
		product.Name,
		product.Description,
		product.Price,
		product.Metric,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao inserir produto", err)
	}

	return product, nil
}

// SaveTx persiste um novo Produto dentro da transação informada.
// Usado pelo registro de catálogo, que grava o produto e o evento
// ProductAdded no outbox na mesma transação.
func (r *ProductRepository) SaveTx(ctx context.Context, tx *sql.Tx, product domain.Product) (domain.Product, error) {
	_, err := tx.ExecContext(ctx, insertProductSQL,
		product.ID,
		product.SKU,
		product.Name,
		product.Description,
		product.Price,
		product.Metric,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao inserir produto", err)
	}

	return product, nil
}

// Define a chave de cache para produtos.
const productCacheKey = "product:%s"

// FindByID busca um produto pelo ID, utilizando a estratégia Cache-Aside.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	ctxGo, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	// Chave de Cache
	key := fmt.Sprintf(productCacheKey, id)
	var product domain.Product

	// --- 1. Estratégia Cache-Aside (READ) ---

	// Tentar obter do Cache (Redis)
	cachedData, err := r.Cache.Get(ctxGo, key)
	if err == nil {
		// Cache HIT
		if json.Unmarshal([]byte(cachedData), &product) == nil {
			// Sucesso na desserialização, retorna o produto do cache
			return product, nil
		}
		// Se a desserialização falhar, seguimos para o DB
	} else if err != cache.ErrCacheMiss { // ErrCacheMiss indica que a chave não existe
		// Erro real de cache (ex: conexão perdida): seguimos para o DB.
	}

	// --- 2. Busca no Banco de Dados (PostgreSQL) ---

	const productSQL = `
		SELECT id, sku, name, description, price, metric, is_active, created_at, updated_at
		FROM products
		WHERE id = $1`

	row := r.DB.QueryRowContext(ctxGo, productSQL, id)

	err = row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Metric,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	// 3. Tratamento do Erro de Busca (Crucial para o 404)
	if err == sql.ErrNoRows {
		// O Serviço receberá isso e o Handler o mapeará para 404.
		return domain.Product{}, errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", id))
	}
	if err != nil {
		return domain.Product{}, errors.NewDBError("Falha ao buscar produto no DB", err)
	}

	// --- 4. Estratégia Cache-Aside (WRITE) ---
	// Se encontrado no DB, populamos o cache para futuras requisições.
	productJSON, marshalErr := json.Marshal(product)
	if marshalErr == nil {
		// TTL de 5 minutos (poderia vir do config)
		r.Cache.Set(ctxGo, key, productJSON, 5*time.Minute)
	}

	return product, nil
}

// FindAll lista os produtos do catálogo conforme o filtro (nome/SKU/ativos),
// com paginação simples.
func (r *ProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
		SELECT id, sku, name, description, price, metric, is_active, created_at, updated_at
		FROM products
		WHERE 1=1`
	args := make([]interface{}, 0, 4)

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if filter.SKU != "" {
		args = append(args, filter.SKU)
		query += fmt.Sprintf(" AND sku = $%d", len(args))
	}
	if filter.ActiveOnly {
		query += " AND is_active = TRUE"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, (page-1)*limit)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		return nil, errors.NewDBError("Falha ao listar produtos", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.SKU, &product.Name, &product.Description,
			&product.Price, &product.Metric, &product.IsActive, &product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, errors.NewDBError("Falha ao ler produto", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar produtos", err)
	}

	return products, nil
}

// Update atualiza os dados editáveis do produto e invalida o cache.
// A métrica não é editável: quantidades e itens de inventário existentes
// dependem dela.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
		UPDATE products
		SET sku = $1, name = $2, description = $3, price = $4, is_active = $5, updated_at = $6
		WHERE id = $7`

	result, err := r.DB.ExecContext(ctxTimeout, query,
		product.SKU, product.Name, product.Description, product.Price,
		product.IsActive, product.UpdatedAt, product.ID,
	)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar produto", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("Produto com ID %s não existe na base de dados.", product.ID))
	}

	// Invalidação do cache: a próxima leitura repopula via Cache-Aside.
	r.Cache.Delete(ctxTimeout, fmt.Sprintf(productCacheKey, product.ID))

	return nil
}
