package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizjudge/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a single subscriber should receive correct event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
						eventWithName("e2"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"e1"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("e1")}, out.received["s1"])
			},
		},

		"a single subscriber should receive all dispatched event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
						eventWithName("e1"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"e1"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("e1"), eventWithName("e1")}, out.received["s1"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"e1"},
						},
						{
							name:        "s2",
							subscribeTo: []string{"e1"},
						},
						{
							name:        "s3",
							subscribeTo: []string{"e1"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("e1")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("e1")}, out.received["s2"])
				assert.ElementsMatch(t, []event.Event{eventWithName("e1")}, out.received["s3"])
			},
		},

		"multiple events should be dispatched correctly multiple subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
						eventWithName("e2"),
						eventWithName("e1"),
						eventWithName("e3"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"e1"},
						},
						{
							name:        "s2",
							subscribeTo: []string{"e1", "e2"},
						},
						{
							name:        "s3",
							subscribeTo: []string{"e3", "e2"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("e1"), eventWithName("e1")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("e1"), eventWithName("e1"), eventWithName("e2")}, out.received["s2"])
				assert.ElementsMatch(t, []event.Event{eventWithName("e2"), eventWithName("e3")}, out.received["s3"])
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerFailures(t *testing.T) {
	b := event.NewBus()

	var calls atomic.Int32
	b.Subscribe("e1", func(context.Context, event.Event) error {
		calls.Add(1)
		panic("boom")
	})
	b.Subscribe("e1", func(context.Context, event.Event) error {
		calls.Add(1)
		return errors.New("failed")
	})
	b.Subscribe("e1", func(context.Context, event.Event) error {
		calls.Add(1)
		return nil
	})

	b.Publish(context.Background(), eventWithName("e1"))
	b.Stop()

	assert.Equal(t, int32(3), calls.Load(), "a failing handler should not prevent the others")
}

func TestBus_SlowHandlerIsolation(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1))

	release := make(chan struct{})
	b.Subscribe("slow", func(context.Context, event.Event) error {
		<-release
		return nil
	})

	fast := make(chan struct{}, 1)
	b.Subscribe("fast", func(context.Context, event.Event) error {
		fast <- struct{}{}
		return nil
	})

	b.Publish(context.Background(), eventWithName("slow"))
	b.Publish(context.Background(), eventWithName("fast"))

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast handler should not wait for the slow one")
	}

	close(release)
	b.Stop()
}

func TestBus_HandlerTimeout(t *testing.T) {
	b := event.NewBus(event.WithHandlerTimeout(20 * time.Millisecond))

	var got error
	b.Subscribe("e1", func(ctx context.Context, _ event.Event) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.Publish(ctx, eventWithName("e1"))
	cancel()
	b.Stop()

	require.ErrorIs(t, got, context.DeadlineExceeded, "handlers should outlive the publisher's context")
}

func TestBus_StopWaitsForChainedEvents(t *testing.T) {
	b := event.NewBus()

	var second atomic.Bool
	b.Subscribe("first", func(ctx context.Context, _ event.Event) error {
		time.Sleep(10 * time.Millisecond)
		b.Publish(ctx, eventWithName("second"))
		return nil
	})
	b.Subscribe("second", func(context.Context, event.Event) error {
		second.Store(true)
		return nil
	})

	b.Publish(context.Background(), eventWithName("first"))
	b.Stop()
	assert.True(t, second.Load())

	var late atomic.Bool
	b.Subscribe("late", func(context.Context, event.Event) error {
		late.Store(true)
		return nil
	})
	b.Publish(context.Background(), eventWithName("late"))
	b.Stop()
	assert.False(t, late.Load(), "events published after Stop should be dropped")
}

func TestBus_PublishFromHandlerWithSaturatedPool(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1))

	var slowRuns atomic.Int32
	release := make(chan struct{})
	b.Subscribe("slow", func(context.Context, event.Event) error {
		<-release
		slowRuns.Add(1)
		return nil
	})

	published := make(chan struct{})
	b.Subscribe("chain", func(ctx context.Context, _ event.Event) error {
		b.Publish(ctx, eventWithName("slow"))
		close(published)
		return nil
	})

	// Fill the pool of "slow", then publish into it from another handler.
	b.Publish(context.Background(), eventWithName("slow"))
	b.Publish(context.Background(), eventWithName("chain"))

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publishing from a handler should not wait for a pool slot")
	}

	subscribed := make(chan struct{})
	go func() {
		b.Subscribe("other", func(context.Context, event.Event) error { return nil })
		close(subscribed)
	}()

	select {
	case <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("subscribing should not wait for a saturated pool")
	}

	close(release)
	b.Stop()
	assert.EqualValues(t, 2, slowRuns.Load())
}

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
