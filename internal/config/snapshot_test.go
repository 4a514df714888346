package config

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingLoader returns canned snapshots and counts loads.
type countingLoader struct {
	mu    sync.Mutex
	loads int
	err   error
}

func (l *countingLoader) Load(context.Context) (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.loads++
	return &Snapshot{
		Greeting: "greeting",
		LoadedAt: time.Now(),
	}, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func (l *countingLoader) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func TestStoreInitialLoad(t *testing.T) {
	loader := &countingLoader{}
	store, err := NewStore(context.Background(), loader, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if loader.count() != 1 {
		t.Errorf("loads = %d, want 1", loader.count())
	}
	if snap := store.Current(context.Background()); snap.Greeting != "greeting" {
		t.Errorf("Greeting = %q", snap.Greeting)
	}
}

func TestStoreInitialLoadFailure(t *testing.T) {
	loader := &countingLoader{}
	loader.fail(errors.New("store unavailable"))
	if _, err := NewStore(context.Background(), loader, time.Minute, nil); err == nil {
		t.Fatal("NewStore succeeded with a failing loader")
	}
}

func TestStoreServesFreshWithoutReload(t *testing.T) {
	loader := &countingLoader{}
	store, err := NewStore(context.Background(), loader, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for i := 0; i < 10; i++ {
		store.Current(context.Background())
	}
	if loader.count() != 1 {
		t.Errorf("loads = %d, want 1 within TTL", loader.count())
	}
}

func TestStoreReloadsWhenStale(t *testing.T) {
	loader := &countingLoader{}
	store, err := NewStore(context.Background(), loader, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	store.Current(context.Background())
	if loader.count() != 2 {
		t.Errorf("loads = %d, want 2 after TTL expiry", loader.count())
	}
}

func TestStoreServesStaleOnFailure(t *testing.T) {
	loader := &countingLoader{}
	store, err := NewStore(context.Background(), loader, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	loader.fail(errors.New("store unavailable"))
	time.Sleep(20 * time.Millisecond)

	snap := store.Current(context.Background())
	if snap == nil || snap.Greeting != "greeting" {
		t.Fatalf("stale snapshot not served: %+v", snap)
	}
}

func TestStoreForceRefresh(t *testing.T) {
	loader := &countingLoader{}
	store, err := NewStore(context.Background(), loader, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// Refresh respects freshness; ForceRefresh does not.
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if loader.count() != 1 {
		t.Errorf("loads = %d, fresh Refresh should not reload", loader.count())
	}

	if err := store.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}
	if loader.count() != 2 {
		t.Errorf("loads = %d, want 2 after ForceRefresh", loader.count())
	}
}

func TestEnvLoaderDefaults(t *testing.T) {
	snap, err := EnvLoader{}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Greeting != DefaultGreeting {
		t.Errorf("Greeting = %q", snap.Greeting)
	}
	if !snap.CallLogEnabled {
		t.Error("CallLogEnabled defaults to false, want true")
	}
	if snap.DefaultCountryCode != DefaultCountryCode {
		t.Errorf("DefaultCountryCode = %q", snap.DefaultCountryCode)
	}
}

func TestEnvLoaderOverrides(t *testing.T) {
	t.Setenv("AGENT_GREETING", "Hello from the test")
	t.Setenv("WEBHOOK_CALL_LOG", "false")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/agent")

	snap, err := EnvLoader{}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Greeting != "Hello from the test" {
		t.Errorf("Greeting = %q", snap.Greeting)
	}
	if snap.CallLogEnabled {
		t.Error("CallLogEnabled = true, want false")
	}
	if snap.WebhookURL != "https://hooks.example.com/agent" {
		t.Errorf("WebhookURL = %q", snap.WebhookURL)
	}
}
