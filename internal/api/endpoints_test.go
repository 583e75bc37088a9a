package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(StaticToken("test-token"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestEntryPath(t *testing.T) {
	tests := []struct {
		identity string
		name     string
		want     string
	}{
		{"alice", "alice_keyknox", "/v1/keyknox/alice/alice_keyknox"},
		{"a/b", "n m", "/v1/keyknox/a%2Fb/n%20m"},
	}

	for _, tt := range tests {
		if got := EntryPath(tt.identity, tt.name); got != tt.want {
			t.Errorf("EntryPath(%q, %q) = %q, want %q", tt.identity, tt.name, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != HealthPath {
				t.Errorf("path = %s, want %s", r.URL.Path, HealthPath)
			}
			json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
		})
		if err := client.Health(context.Background()); err != nil {
			t.Errorf("Health() error = %v", err)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(HealthResponse{Status: "degraded"})
		})
		if err := client.Health(context.Background()); err == nil {
			t.Error("Health() should fail for a degraded server")
		}
	})
}

func TestPublishCard_Success(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != CardsPath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req PublishCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Identity != "alice" || string(req.PublicKey) != "pk" || req.PreviousCardID != "old" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(Card{
			ID:             "card-1",
			Identity:       req.Identity,
			PublicKey:      req.PublicKey,
			PreviousCardID: req.PreviousCardID,
			CreatedAt:      created,
		})
	})

	card, err := client.PublishCard(context.Background(), PublishCardRequest{
		Identity:       "alice",
		PublicKey:      []byte("pk"),
		PreviousCardID: "old",
	})
	if err != nil {
		t.Fatalf("PublishCard() error = %v", err)
	}
	if card.ID != "card-1" || !card.CreatedAt.Equal(created) {
		t.Errorf("unexpected card: %+v", card)
	}
}

func TestPublishCard_Forbidden(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "subject mismatch"})
	})

	_, err := client.PublishCard(context.Background(), PublishCardRequest{Identity: "bob"})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestSearchCards(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != CardSearchPath {
			t.Errorf("path = %s, want %s", r.URL.Path, CardSearchPath)
		}
		var req SearchCardsRequest
		json.NewDecoder(r.Body).Decode(&req)

		var resp SearchCardsResponse
		for _, id := range req.Identities {
			if id != "ghost" {
				resp.Cards = append(resp.Cards, Card{ID: "card-" + id, Identity: id})
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	cards, err := client.SearchCards(context.Background(), []string{"alice", "ghost", "bob"})
	if err != nil {
		t.Fatalf("SearchCards() error = %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("len(cards) = %d, want 2", len(cards))
	}
	if cards[0].Identity != "alice" || cards[1].Identity != "bob" {
		t.Errorf("unexpected cards: %+v", cards)
	}
}

func TestGetEntry(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/keyknox/alice/alice_keyknox" {
				t.Errorf("path = %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(Entry{Identity: "alice", Name: "alice_keyknox", Data: []byte("blob"), Version: "v1"})
		})

		entry, err := client.GetEntry(context.Background(), "alice", "alice_keyknox")
		if err != nil {
			t.Fatalf("GetEntry() error = %v", err)
		}
		if string(entry.Data) != "blob" || entry.Version != "v1" {
			t.Errorf("unexpected entry: %+v", entry)
		}
	})

	t.Run("not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "no entry"})
		})

		_, err := client.GetEntry(context.Background(), "alice", "alice_keyknox")
		if !errors.Is(err, ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
		if errors.Is(err, ErrCardNotFound) {
			t.Error("entry 404 should not match ErrCardNotFound")
		}
	})
}

func TestPutEntry(t *testing.T) {
	t.Parallel()

	t.Run("create", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("method = %s, want PUT", r.Method)
			}
			var req PutEntryRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.ExpectedVersion != "" {
				t.Errorf("ExpectedVersion = %q, want empty", req.ExpectedVersion)
			}
			json.NewEncoder(w).Encode(Entry{Data: req.Data, Version: "v1"})
		})

		entry, err := client.PutEntry(context.Background(), "alice", "alice_keyknox", []byte("blob"), "")
		if err != nil {
			t.Fatalf("PutEntry() error = %v", err)
		}
		if entry.Version != "v1" {
			t.Errorf("Version = %q, want v1", entry.Version)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "version mismatch"})
		})

		_, err := client.PutEntry(context.Background(), "alice", "alice_keyknox", []byte("blob"), "stale")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestDeleteEntry(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if got := r.URL.Query().Get("version"); got != "v 2" {
			t.Errorf("version = %q, want %q", got, "v 2")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.DeleteEntry(context.Background(), "alice", "alice_keyknox", "v 2"); err != nil {
		t.Errorf("DeleteEntry() error = %v", err)
	}
}
