//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"asistente-tienda/internal/catalog"
	"asistente-tienda/internal/domain"
	"asistente-tienda/internal/domain/model"
	"asistente-tienda/internal/domain/ports/repository"
	"asistente-tienda/internal/infra/security"
)

func mustProduct(t *testing.T, id int64, title, desc string, cents int64, stock int, active bool) model.Product {
	t.Helper()
	p, err := model.NewProduct(id, title, desc, cents, stock, active, "")
	if err != nil {
		t.Fatalf("NewProduct: %v", err)
	}
	return *p
}

func TestProductRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	repo := NewProductRepo(testPool)

	products := []model.Product{
		mustProduct(t, 2, "Smartphone Galaxy", "Pantalla AMOLED", 89999, 25, true),
		mustProduct(t, 1, "Laptop Gaming", "Laptop de alto rendimiento", 129999, 8, true),
		mustProduct(t, 3, "Laptop Básica", "Descontinuada", 44900, 0, false),
	}

	t.Run("upsert all and list in id order", func(t *testing.T) {
		if err := repo.UpsertAll(ctx, products); err != nil {
			t.Fatalf("UpsertAll: %v", err)
		}
		all, err := repo.ListAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 3 || all[0].ID != 1 || all[2].ID != 3 {
			t.Fatalf("unexpected list %+v", all)
		}
		if all[0].PriceCents != 129999 {
			t.Errorf("price round trip: got %d", all[0].PriceCents)
		}
		active, _ := repo.ListActive(ctx)
		if len(active) != 2 {
			t.Fatalf("want 2 active, got %d", len(active))
		}
	})

	t.Run("upsert updates", func(t *testing.T) {
		p := products[0]
		p.Stock = 3
		if err := repo.Upsert(ctx, &p); err != nil {
			t.Fatal(err)
		}
		got, err := repo.Get(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if got.Stock != 3 {
			t.Errorf("stock not updated: %d", got.Stock)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := repo.Get(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid product rolls back the batch", func(t *testing.T) {
		bad := []model.Product{
			mustProduct(t, 10, "Mouse", "", 1999, 1, true),
			{ID: 11, Title: "", PriceCents: 1},
		}
		if err := repo.UpsertAll(ctx, bad); err == nil {
			t.Fatal("expected error")
		}
		if _, err := repo.Get(ctx, 10); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("partial batch committed: %v", err)
		}
	})

	t.Run("feeds the catalog index", func(t *testing.T) {
		idx, err := catalog.Load(ctx, repo, catalog.DefaultCap)
		if err != nil {
			t.Fatal(err)
		}
		hits := idx.Search("laptops", 0)
		if len(hits) != 1 || hits[0].ID != 1 {
			t.Fatalf("inactive products must not be searchable: %+v", hits)
		}
	})
}

func TestTranscriptRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	repo := NewTranscriptRepo(testPool, nil)
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := repo.OpenChat(ctx, "01HZX", "127.0.0.1:5000", now); err != nil {
		t.Fatal(err)
	}
	// reopening is a no-op
	if err := repo.OpenChat(ctx, "01HZX", "127.0.0.1:5000", now); err != nil {
		t.Fatal(err)
	}

	msgs := []repository.TranscriptMessage{
		{SessionID: "01HZX", Role: repository.RoleUser, Content: "¿Hacen envíos?", Intent: "policy_query", At: now},
		{SessionID: "01HZX", Role: repository.RoleAssistant, Content: "Sí, a todo el país.", Intent: "policy_query", At: now},
	}
	for _, m := range msgs {
		if err := repo.SaveMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListMessages(ctx, "01HZX")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Role != repository.RoleUser || got[1].Content != "Sí, a todo el país." {
		t.Fatalf("unexpected transcript %+v", got)
	}

	if err := repo.SaveMessage(ctx, repository.TranscriptMessage{SessionID: "nope", Role: repository.RoleUser, Content: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("message for unknown chat: want ErrNotFound, got %v", err)
	}

	if err := repo.CloseChat(ctx, "01HZX", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := repo.CloseChat(ctx, "01HZX", now.Add(2*time.Minute)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double close: want ErrNotFound, got %v", err)
	}
}

func TestTranscriptRepo_Sealed_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	sealer, err := security.NewEncryptionService("clave-de-prueba")
	if err != nil {
		t.Fatal(err)
	}
	repo := NewTranscriptRepo(testPool, sealer)
	now := time.Now().UTC()

	if err := repo.OpenChat(ctx, "01SEALED", "127.0.0.1:5000", now); err != nil {
		t.Fatal(err)
	}
	msg := repository.TranscriptMessage{SessionID: "01SEALED", Role: repository.RoleUser, Content: "Mi pedido no llegó", At: now}
	if err := repo.SaveMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	var stored string
	if err := testPool.QueryRow(ctx, `SELECT content FROM chat_messages WHERE chat_id = $1`, "01SEALED").Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored == msg.Content {
		t.Fatal("content must not be stored in plaintext")
	}

	got, err := repo.ListMessages(ctx, "01SEALED")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != msg.Content {
		t.Fatalf("unexpected transcript %+v", got)
	}
}
