package database

import (
	"context"
	"database/sql"
	"time"

	"gocommerce/internal/errors"
)

// TxManager define o contrato da unidade de trabalho explícita.
// A sequência read-modify-write que toca múltiplos agregados (pedido +
// itens de inventário + outbox) deve rodar inteira dentro de WithinTx:
// ou tudo commita, ou nada. A função recebe a transação aberta; qualquer
// erro retornado aborta todas as escritas.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}

// SQLTxManager é a implementação concreta de TxManager sobre *sql.DB.
type SQLTxManager struct {
	DB        *sql.DB
	DBTimeout time.Duration
}

// NewTxManager cria e retorna um novo gerenciador de transações.
func NewTxManager(db *sql.DB, dbTimeout time.Duration) *SQLTxManager {
	return &SQLTxManager{DB: db, DBTimeout: dbTimeout}
}

// WithinTx abre uma transação, executa fn e commita.
// Em caso de erro (ou panic propagado), a transação sofre rollback e o erro
// original de fn é preservado, inclusive erros tipados como ConflictError,
// que o chamador usa para decidir re-tentar a verificação com dados frescos.
func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, m.DBTimeout)
	defer cancel()

	tx, err := m.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback() // Rollback em caso de erro; no-op após Commit

	if err := fn(ctxTimeout, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDBError("Falha ao commitar transação", err)
	}

	return nil
}
