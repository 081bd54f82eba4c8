package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBroker_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	_, a, cancelA := b.Subscribe()
	_, c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	b.Publish(CountEvent{Count: 3})

	assert.Equal(t, 3, (<-a).Count)
	assert.Equal(t, 3, (<-c).Count)
}

func TestBroker_SlowSubscriberSeesLatest(t *testing.T) {
	b := NewBroker()
	_, ch, cancel := b.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(CountEvent{Count: i})
	}

	ev := <-ch
	assert.Equal(t, 5, ev.Count)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event %v", extra)
	default:
	}
}

func TestBroker_CancelClosesOnce(t *testing.T) {
	b := NewBroker()
	_, ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	// Publishing after cancel must not panic
	b.Publish(CountEvent{Count: 1})
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker()
	_, ch, cancel := b.Subscribe()

	b.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	_, late, _ := b.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed broker yields a closed channel")
}

func TestBroker_ConcurrentPublish(t *testing.T) {
	b := NewBroker()
	_, ch, cancel := b.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Publish(CountEvent{Count: n, At: time.Now()})
		}(i)
	}
	wg.Wait()

	select {
	case <-ch:
	default:
		t.Fatal("expected a buffered event")
	}
}
