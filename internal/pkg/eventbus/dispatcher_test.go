package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocommerce/internal/pkg/eventbus"
	"gocommerce/internal/pkg/logger"
)

// MockDeliveryStore é uma implementação mock da interface DeliveryStore
type MockDeliveryStore struct {
	mock.Mock
}

func (m *MockDeliveryStore) FindPending(ctx context.Context, limit int) ([]eventbus.PendingDelivery, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]eventbus.PendingDelivery), args.Error(1)
}

func (m *MockDeliveryStore) MarkCompleted(ctx context.Context, deliveryID string) error {
	args := m.Called(ctx, deliveryID)
	return args.Error(0)
}

func (m *MockDeliveryStore) MarkFailed(ctx context.Context, deliveryID string, handlerErr error) error {
	args := m.Called(ctx, deliveryID, handlerErr)
	return args.Error(0)
}

func newDispatcherWithStore(store eventbus.DeliveryStore) *eventbus.Dispatcher {
	return eventbus.NewDispatcher(store, logger.NewLogger("debug"), time.Second, 10)
}

func pendingDelivery(eventName, handlerName string) eventbus.PendingDelivery {
	return eventbus.PendingDelivery{
		DeliveryID:  "delivery-1",
		HandlerName: handlerName,
		Attempts:    0,
		Event: eventbus.Envelope{
			EventID:     "event-1",
			EventName:   eventName,
			AggregateID: "agg-1",
			Payload:     []byte(`{}`),
			OccurredAt:  time.Now().UTC(),
		},
	}
}

// TestSubscribe_DuplicateHandlerName testa que o nome do handler é único por evento.
func TestSubscribe_DuplicateHandlerName(t *testing.T) {
	d := newDispatcherWithStore(new(MockDeliveryStore))

	noop := func(ctx context.Context, event eventbus.Envelope) error { return nil }

	assert.NoError(t, d.Subscribe("order.paid", "handler-a", noop))
	assert.Error(t, d.Subscribe("order.paid", "handler-a", noop))
	// O mesmo nome em outro evento é permitido
	assert.NoError(t, d.Subscribe("order.canceled", "handler-a", noop))
}

// TestHandlerNames_ReflectsSubscriptions testa o Registry usado pelo outbox
// para criar um marcador de entrega por handler.
func TestHandlerNames_ReflectsSubscriptions(t *testing.T) {
	d := newDispatcherWithStore(new(MockDeliveryStore))

	noop := func(ctx context.Context, event eventbus.Envelope) error { return nil }
	assert.NoError(t, d.Subscribe("order.paid", "handler-a", noop))
	assert.NoError(t, d.Subscribe("order.paid", "handler-b", noop))

	names := d.HandlerNames("order.paid")
	assert.ElementsMatch(t, []string{"handler-a", "handler-b"}, names)
	assert.Empty(t, d.HandlerNames("order.canceled"))
}

// TestDispatchPending_MarksCompletedOnSuccess testa o caminho feliz de entrega.
func TestDispatchPending_MarksCompletedOnSuccess(t *testing.T) {
	store := new(MockDeliveryStore)
	d := newDispatcherWithStore(store)

	delivered := 0
	assert.NoError(t, d.Subscribe("order.paid", "handler-a", func(ctx context.Context, event eventbus.Envelope) error {
		delivered++
		assert.Equal(t, "event-1", event.EventID)
		return nil
	}))

	store.On("FindPending", mock.Anything, 10).
		Return([]eventbus.PendingDelivery{pendingDelivery("order.paid", "handler-a")}, nil)
	store.On("MarkCompleted", mock.Anything, "delivery-1").Return(nil)

	d.DispatchPending(context.Background())

	assert.Equal(t, 1, delivered)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

// TestDispatchPending_MarksFailedOnHandlerError testa o isolamento de falha:
// o erro do handler é registrado no marcador e NÃO se propaga.
func TestDispatchPending_MarksFailedOnHandlerError(t *testing.T) {
	store := new(MockDeliveryStore)
	d := newDispatcherWithStore(store)

	handlerErr := errors.New("falha transitória")
	assert.NoError(t, d.Subscribe("order.paid", "handler-a", func(ctx context.Context, event eventbus.Envelope) error {
		return handlerErr
	}))

	store.On("FindPending", mock.Anything, 10).
		Return([]eventbus.PendingDelivery{pendingDelivery("order.paid", "handler-a")}, nil)
	store.On("MarkFailed", mock.Anything, "delivery-1", handlerErr).Return(nil)

	d.DispatchPending(context.Background())

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
}

// TestDispatchPending_IsolatesFailures testa que a falha de um handler não
// bloqueia a entrega aos demais.
func TestDispatchPending_IsolatesFailures(t *testing.T) {
	store := new(MockDeliveryStore)
	d := newDispatcherWithStore(store)

	assert.NoError(t, d.Subscribe("order.paid", "handler-fails", func(ctx context.Context, event eventbus.Envelope) error {
		return errors.New("boom")
	}))
	succeeded := false
	assert.NoError(t, d.Subscribe("order.paid", "handler-succeeds", func(ctx context.Context, event eventbus.Envelope) error {
		succeeded = true
		return nil
	}))

	failing := pendingDelivery("order.paid", "handler-fails")
	ok := pendingDelivery("order.paid", "handler-succeeds")
	ok.DeliveryID = "delivery-2"

	store.On("FindPending", mock.Anything, 10).
		Return([]eventbus.PendingDelivery{failing, ok}, nil)
	store.On("MarkFailed", mock.Anything, "delivery-1", mock.Anything).Return(nil)
	store.On("MarkCompleted", mock.Anything, "delivery-2").Return(nil)

	d.DispatchPending(context.Background())

	assert.True(t, succeeded)
	store.AssertExpectations(t)
}

// TestDispatchPending_UnregisteredHandlerKeptPending testa que uma entrega sem
// handler registrado neste processo permanece pendente (não é marcada).
func TestDispatchPending_UnregisteredHandlerKeptPending(t *testing.T) {
	store := new(MockDeliveryStore)
	d := newDispatcherWithStore(store)

	store.On("FindPending", mock.Anything, 10).
		Return([]eventbus.PendingDelivery{pendingDelivery("order.paid", "handler-desconhecido")}, nil)

	d.DispatchPending(context.Background())

	store.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

// TestNotify_WakesRunLoop testa que a cutucada pós-commit acorda o laço de
// entrega sem esperar a varredura periódica.
func TestNotify_WakesRunLoop(t *testing.T) {
	store := new(MockDeliveryStore)
	// Intervalo longo: só a cutucada pode disparar a varredura dentro do teste.
	d := eventbus.NewDispatcher(store, logger.NewLogger("debug"), time.Hour, 10)

	dispatched := make(chan struct{}, 1)
	store.On("FindPending", mock.Anything, 10).
		Run(func(args mock.Arguments) {
			select {
			case dispatched <- struct{}{}:
			default:
			}
		}).
		Return([]eventbus.PendingDelivery{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Notify()

	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("o laço de entrega não acordou com a cutucada")
	}
}

// TestNotify_NeverBlocks testa que cutucar sem ninguém ouvindo não trava o publicador.
func TestNotify_NeverBlocks(t *testing.T) {
	d := newDispatcherWithStore(new(MockDeliveryStore))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify bloqueou o publicador")
	}
}
