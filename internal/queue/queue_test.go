package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEnqueueDeduplicates(t *testing.T) {
	client := testClient(t)
	enq := Enqueuer{R: client, Prefix: "pricing", DedupTTL: time.Minute}
	ctx := context.Background()

	task := Task{Kind: "usetime:settle", Payload: []byte(`{"order":"1"}`), IdempotencyKey: "order-1"}
	if err := enq.Enqueue(ctx, task); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := enq.Enqueue(ctx, task); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	n, err := client.ZCard(ctx, "pricing:queue:usetime:settle").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one queued task, got %d", n)
	}
}

func TestEnqueueRejectsBadKind(t *testing.T) {
	client := testClient(t)
	enq := Enqueuer{R: client}
	if err := enq.Enqueue(context.Background(), Task{Kind: "bad kind!"}); err == nil {
		t.Fatalf("expected kind validation error")
	}
}

func TestWorkerProcessesTask(t *testing.T) {
	client := testClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enq := Enqueuer{R: client}
	if err := enq.Enqueue(ctx, Task{Kind: "usetime:settle", Payload: []byte(`{"order":"1"}`), IdempotencyKey: "order-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var handled atomic.Int32
	done := make(chan struct{})
	worker := Worker{
		R:    client,
		Kind: "usetime:settle",
		Handler: func(_ context.Context, task Task) error {
			if task.IdempotencyKey != "order-1" {
				t.Errorf("unexpected idempotency key %q", task.IdempotencyKey)
			}
			if handled.Add(1) == 1 {
				close(done)
			}
			return nil
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("task not handled in time")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("worker run: %v", err)
	}
	if handled.Load() != 1 {
		t.Fatalf("expected exactly one handling, got %d", handled.Load())
	}
}

func TestWorkerRetriesAndDeadLetters(t *testing.T) {
	client := testClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enq := Enqueuer{R: client}
	if err := enq.Enqueue(ctx, Task{Kind: "usetime:settle", MaxAttempts: 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var attempts atomic.Int32
	failed := make(chan struct{})
	worker := Worker{
		R:         client,
		Kind:      "usetime:settle",
		RetryBase: time.Millisecond,
		Handler: func(context.Context, Task) error {
			if attempts.Add(1) == 2 {
				close(failed)
			}
			return context.DeadlineExceeded
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run(ctx) }()

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatalf("retries did not happen in time")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := client.LLen(context.Background(), "queue:usetime:settle:dlq").Result()
		if err == nil && n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never reached the dead-letter queue")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-errCh
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	if d := backoff(base, 1, 0); d != base {
		t.Fatalf("first attempt should use the base, got %v", d)
	}
	if d := backoff(base, 3, 0); d != 400*time.Millisecond {
		t.Fatalf("third attempt should quadruple, got %v", d)
	}
	if d := backoff(time.Minute, 20, 0); d != 5*time.Minute {
		t.Fatalf("backoff must cap at five minutes, got %v", d)
	}
}
