package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocommerce/internal/pkg/logger"
)

// Envelope é um evento persistido no outbox, pronto para entrega.
// O payload é o JSON do registro de evento original; cada handler
// desserializa para o tipo concreto que conhece.
type Envelope struct {
	EventID     string
	EventName   string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
}

// PendingDelivery é o marcador durável de entrega de um evento a um handler
// específico. Um registro por par (evento, handler): a entrega só é marcada
// como completa depois que o handler retorna sucesso.
type PendingDelivery struct {
	DeliveryID  string
	HandlerName string
	Attempts    int
	Event       Envelope
}

// HandlerFunc é a assinatura de um assinante de eventos.
type HandlerFunc func(ctx context.Context, event Envelope) error

// DeliveryStore é o contrato que o Dispatcher espera do registro durável de
// publicações (o outbox). A camada de repositório fornece a implementação.
type DeliveryStore interface {
	FindPending(ctx context.Context, limit int) ([]PendingDelivery, error)
	MarkCompleted(ctx context.Context, deliveryID string) error
	MarkFailed(ctx context.Context, deliveryID string, handlerErr error) error
}

// Registry expõe os handlers registrados por nome de evento.
// Usado pelo repositório de outbox para criar um marcador de entrega por
// handler no momento em que o evento é gravado.
type Registry interface {
	HandlerNames(eventName string) []string
}

// Dispatcher é o canal de eventos em processo com entrega at-least-once.
//
// A publicação é desacoplada da transação geradora: os serviços gravam os
// eventos no outbox dentro da própria transação de negócio e apenas "cutucam"
// o dispatcher (Notify). O laço de entrega varre os marcadores pendentes,
// invoca cada handler isoladamente e marca a conclusão por handler. Falhas de
// handler são registradas e re-tentadas na próxima varredura; nunca se
// propagam ao publicador nem bloqueiam os demais handlers.
type Dispatcher struct {
	store     DeliveryStore
	logger    logger.Logger
	interval  time.Duration
	batchSize int

	mu       sync.RWMutex
	handlers map[string]map[string]HandlerFunc // nome do evento -> nome do handler -> função

	notify chan struct{}
}

// NewDispatcher cria e retorna um novo Dispatcher.
// interval é o período da varredura de re-tentativa; batchSize limita
// quantas entregas pendentes são buscadas por varredura.
func NewDispatcher(store DeliveryStore, log logger.Logger, interval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		store:     store,
		logger:    log,
		interval:  interval,
		batchSize: batchSize,
		handlers:  make(map[string]map[string]HandlerFunc),
		notify:    make(chan struct{}, 1),
	}
}

// Subscribe registra um handler nomeado para um tipo de evento.
// O nome identifica o marcador de entrega no outbox, então precisa ser
// estável entre execuções do processo.
func (d *Dispatcher) Subscribe(eventName, handlerName string, fn HandlerFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handlers[eventName] == nil {
		d.handlers[eventName] = make(map[string]HandlerFunc)
	}
	if _, exists := d.handlers[eventName][handlerName]; exists {
		return fmt.Errorf("handler %q já registrado para o evento %q", handlerName, eventName)
	}

	d.handlers[eventName][handlerName] = fn
	return nil
}

// HandlerNames retorna os nomes dos handlers registrados para o evento.
// Implementa a interface Registry.
func (d *Dispatcher) HandlerNames(eventName string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.handlers[eventName]))
	for name := range d.handlers[eventName] {
		names = append(names, name)
	}
	return names
}

// Notify cutuca o laço de entrega para despachar imediatamente, sem esperar
// a próxima varredura periódica. Não bloqueia: se já houver uma cutucada
// pendente, a chamada é descartada.
func (d *Dispatcher) Notify() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Run executa o laço de entrega até o contexto ser cancelado.
// Deve rodar em uma goroutine própria (iniciada no main).
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("Dispatcher de eventos iniciado.", map[string]interface{}{
		"interval":   d.interval.String(),
		"batch_size": d.batchSize,
	})

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher de eventos encerrado.", nil)
			return
		case <-d.notify:
			d.dispatchPending(ctx)
		case <-ticker.C:
			d.dispatchPending(ctx)
		}
	}
}

// DispatchPending processa um lote de entregas pendentes imediatamente.
// Exportado para testes e para uso sem o laço (Run).
func (d *Dispatcher) DispatchPending(ctx context.Context) {
	d.dispatchPending(ctx)
}

// dispatchPending busca as entregas pendentes e as processa uma a uma,
// isolando a falha de cada handler.
func (d *Dispatcher) dispatchPending(ctx context.Context) {
	pending, err := d.store.FindPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Falha ao buscar entregas pendentes no outbox.", err)
		return
	}

	for _, delivery := range pending {
		if ctx.Err() != nil {
			return
		}
		d.deliver(ctx, delivery)
	}
}

// deliver invoca o handler de uma entrega e marca o resultado no outbox.
func (d *Dispatcher) deliver(ctx context.Context, delivery PendingDelivery) {
	d.mu.RLock()
	fn, ok := d.handlers[delivery.Event.EventName][delivery.HandlerName]
	d.mu.RUnlock()

	if !ok {
		// Handler não registrado neste processo (e.g., renomeado entre versões).
		// O marcador permanece visível para inspeção do operador.
		d.logger.Warn("Entrega pendente sem handler registrado.", map[string]interface{}{
			"event":    delivery.Event.EventName,
			"handler":  delivery.HandlerName,
			"event_id": delivery.Event.EventID,
		})
		return
	}

	if err := fn(ctx, delivery.Event); err != nil {
		d.logger.Error(fmt.Sprintf("Handler %q falhou ao processar o evento %q (tentativa %d).",
			delivery.HandlerName, delivery.Event.EventName, delivery.Attempts+1), err)

		if markErr := d.store.MarkFailed(ctx, delivery.DeliveryID, err); markErr != nil {
			d.logger.Error("Falha ao registrar a falha de entrega no outbox.", markErr)
		}
		return
	}

	if err := d.store.MarkCompleted(ctx, delivery.DeliveryID); err != nil {
		// A entrega aconteceu mas o marcador não foi atualizado: na próxima
		// varredura o handler roda de novo (semântica at-least-once).
		d.logger.Error("Falha ao marcar entrega como completa no outbox.", err)
		return
	}

	d.logger.Debug("Evento entregue.", map[string]interface{}{
		"event":   delivery.Event.EventName,
		"handler": delivery.HandlerName,
	})
}
