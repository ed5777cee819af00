package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loomchat/loom/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStorePutGet(t *testing.T) {
	store := newTestStore(t)

	conv := NewConversation(DomainGeneral)
	conv.Append(NewMessage(RoleUser, "hello"))

	if err := store.Put(conv); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != conv.Title || len(got.Messages) != 1 {
		t.Errorf("Get() = %+v, want stored conversation", got)
	}

	// The store hands out clones, not aliases.
	got.Messages[0].Content = "mutated"
	again, err := store.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if again.Messages[0].Content != "hello" {
		t.Error("store state was mutated through a returned clone")
	}
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStorePutReplacesExisting(t *testing.T) {
	store := newTestStore(t)

	conv := NewConversation(DomainGeneral)
	conv.Append(NewMessage(RoleUser, "v1"))
	if err := store.Put(conv); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	conv.Append(NewMessage(RoleModel, "v2"))
	if err := store.Put(conv); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if got := store.List(); len(got) != 1 {
		t.Fatalf("List() count = %d, want 1", len(got))
	}
	got, err := store.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("message count = %d, want 2", len(got.Messages))
	}
}

func TestStorePersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	conv := NewConversation(DomainCode)
	conv.Append(NewMessage(RoleUser, "persist me"))
	if err := store.Put(conv); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A second store over the same directory sees the saved collection.
	reopened, err := NewStore(dir, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	got, err := reopened.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Domain != DomainCode || got.Messages[0].Content != "persist me" {
		t.Errorf("reopened conversation = %+v, want original", got)
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)

	conv := NewConversation(DomainGeneral)
	if err := store.Put(conv); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := store.Delete(conv.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

func TestStoreListOrder(t *testing.T) {
	store := newTestStore(t)

	older := NewConversation(DomainGeneral)
	older.Append(NewMessage(RoleUser, "older"))
	if err := store.Put(older); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	time.Sleep(time.Millisecond)

	newer := NewConversation(DomainGeneral)
	newer.Append(NewMessage(RoleUser, "newer"))
	if err := store.Put(newer); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("List() count = %d, want 2", len(list))
	}
	if list[0].ID != newer.ID {
		t.Error("List() not ordered by most recently updated first")
	}
}
