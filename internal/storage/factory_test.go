package storage

import (
	"context"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("unexpected store type %T", store)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestNewStoreBadger(t *testing.T) {
	store, err := NewStore("badger", "")
	if err != nil {
		t.Fatalf("new badger store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init badger store: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close badger store: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}
