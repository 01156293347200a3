package ephemeral

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMemoryRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewMemoryStore(nil)
	if _, err := store.Create(context.Background(), PurposePasswordReset, "p1", -time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond, 0)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor did not sweep expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
