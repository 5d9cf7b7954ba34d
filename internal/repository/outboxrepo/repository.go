package outboxrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gocommerce/internal/domain"
	"gocommerce/internal/errors"
	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
)

// OutboxRepository é o registro durável de publicações de eventos.
// Cada evento gravado ganha um marcador de entrega por handler registrado;
// o marcador só é completado depois que o handler processa o evento com
// sucesso. Registros incompletos permanecem visíveis para re-tentativa e
// inspeção (at-least-once).
//
// Implementa eventbus.DeliveryStore.
type OutboxRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewOutboxRepository cria e retorna uma nova instância do Repositório de Outbox.
func NewOutboxRepository(db *sql.DB, dbTimeout time.Duration, log logger.Logger) *OutboxRepository {
	return &OutboxRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    log,
	}
}

// AppendTx grava eventos no outbox DENTRO da transação de negócio que os
// originou. É isso que garante que o evento existe sse a mutação commitou.
// Para cada evento, cria um marcador de entrega pendente por handler
// registrado no momento da gravação.
func (r *OutboxRepository) AppendTx(ctx context.Context, tx *sql.Tx, events []domain.Event, registry eventbus.Registry) error {
	const eventSQL = `
        INSERT INTO event_outbox (id, event_name, aggregate_id, payload, occurred_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	const deliverySQL = `
        INSERT INTO event_deliveries (id, event_id, handler_name, attempts, created_at)
        VALUES ($1, $2, $3, 0, $4)`

	now := time.Now().UTC()

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("Falha ao serializar o evento %s.", event.EventName()), err)
		}

		eventID := uuid.New().String()
		if _, err := tx.ExecContext(ctx, eventSQL,
			eventID, event.EventName(), event.EventAggregateID(), payload, event.EventOccurredAt(), now,
		); err != nil {
			return errors.NewDBError("Falha ao gravar evento no outbox", err)
		}

		for _, handlerName := range registry.HandlerNames(event.EventName()) {
			if _, err := tx.ExecContext(ctx, deliverySQL,
				uuid.New().String(), eventID, handlerName, now,
			); err != nil {
				return errors.NewDBError("Falha ao gravar marcador de entrega no outbox", err)
			}
		}

		r.logger.Debug("Evento gravado no outbox.", map[string]interface{}{
			"event":        event.EventName(),
			"aggregate_id": event.EventAggregateID(),
		})
	}

	return nil
}

// FindPending busca as entregas ainda não completadas, das mais antigas para
// as mais novas. Implementa eventbus.DeliveryStore.
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]eventbus.PendingDelivery, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT d.id, d.handler_name, d.attempts,
               e.id, e.event_name, e.aggregate_id, e.payload, e.occurred_at
        FROM event_deliveries d
        JOIN event_outbox e ON e.id = d.event_id
        WHERE d.completed_at IS NULL
        ORDER BY e.created_at ASC
        LIMIT $1`

	rows, err := r.DB.QueryContext(ctxTimeout, query, limit)
	if err != nil {
		return nil, errors.NewDBError("Falha ao buscar entregas pendentes", err)
	}
	defer rows.Close()

	var pending []eventbus.PendingDelivery
	for rows.Next() {
		var delivery eventbus.PendingDelivery
		if err := rows.Scan(
			&delivery.DeliveryID, &delivery.HandlerName, &delivery.Attempts,
			&delivery.Event.EventID, &delivery.Event.EventName, &delivery.Event.AggregateID,
			&delivery.Event.Payload, &delivery.Event.OccurredAt,
		); err != nil {
			return nil, errors.NewDBError("Falha ao ler entrega pendente", err)
		}
		pending = append(pending, delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar entregas pendentes", err)
	}

	return pending, nil
}

// MarkCompleted marca a entrega como concluída. Implementa eventbus.DeliveryStore.
func (r *OutboxRepository) MarkCompleted(ctx context.Context, deliveryID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        UPDATE event_deliveries
        SET completed_at = $1, attempts = attempts + 1, last_error = NULL
        WHERE id = $2`

	if _, err := r.DB.ExecContext(ctxTimeout, query, time.Now().UTC(), deliveryID); err != nil {
		return errors.NewDBError("Falha ao marcar entrega como completa", err)
	}
	return nil
}

// MarkFailed registra a falha de um handler, preservando o marcador pendente
// para a próxima varredura. Implementa eventbus.DeliveryStore.
func (r *OutboxRepository) MarkFailed(ctx context.Context, deliveryID string, handlerErr error) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        UPDATE event_deliveries
        SET attempts = attempts + 1, last_error = $1
        WHERE id = $2`

	if _, err := r.DB.ExecContext(ctxTimeout, query, handlerErr.Error(), deliveryID); err != nil {
		return errors.NewDBError("Falha ao registrar erro de entrega", err)
	}
	return nil
}
