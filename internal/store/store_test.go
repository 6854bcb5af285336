package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/greetforge/greetforge/internal/db"
	"github.com/greetforge/greetforge/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(conn)
}

func TestFindOrCreateUserIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.FindOrCreateUser(ctx, "Jordan", "jordan@acme.test", "Acme")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	second, err := st.FindOrCreateUser(ctx, "Jordan", "JORDAN@acme.test", "ACME")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same identity produced two users: %s vs %s", first.ID, second.ID)
	}
	if second.Company != "acme" {
		t.Fatalf("company not normalized: %q", second.Company)
	}
}

func TestFindOrCreateUserDistinctCompanies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, _ := st.FindOrCreateUser(ctx, "Jordan", "jordan@acme.test", "acme")
	second, _ := st.FindOrCreateUser(ctx, "Jordan", "jordan@acme.test", "globex")
	if first.ID == second.ID {
		t.Fatal("same email at different companies must be distinct users")
	}
}

func TestAppendAndCountGenerations(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, _ := st.FindOrCreateUser(ctx, "Jordan", "jordan@acme.test", "acme")
	for i := 0; i < 3; i++ {
		_, err := st.AppendGeneration(ctx, user.ID, "acme", models.ModeStaff, "/generated/x.png", "prompt", models.UserDetails{Name: "Jordan"})
		if err != nil {
			t.Fatalf("append generation: %v", err)
		}
	}

	total, err := st.CountGenerations(ctx, "ACME")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Fatalf("got %d generations, want 3", total)
	}
}

func TestGenerationByImageURL(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	user, _ := st.FindOrCreateUser(ctx, "Jordan", "jordan@acme.test", "acme")
	created, _ := st.AppendGeneration(ctx, user.ID, "acme", models.ModeStaff, "/generated/greeting-card-acme-1.png", "prompt", models.UserDetails{})

	found, err := st.GenerationByImageURL(ctx, "/generated/greeting-card-acme-1.png")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("got generation %s, want %s", found.ID, created.ID)
	}

	if _, err := st.GenerationByImageURL(ctx, "/generated/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	byID, err := st.GenerationByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("lookup by id: %v", err)
	}
	if byID.ImageURL != created.ImageURL {
		t.Fatalf("got image url %q", byID.ImageURL)
	}
	if _, err := st.GenerationByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpsertTemplateLastWriteWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.UpsertTemplate(ctx, "Acme", "first template", true, "admin"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	saved, err := st.UpsertTemplate(ctx, "ACME", "second template", true, "admin")
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if saved.Template != "second template" {
		t.Fatalf("got template %q, want the second write", saved.Template)
	}

	templates, err := st.Templates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("got %d templates, want 1", len(templates))
	}
}

func TestActiveTemplateIgnoresInactive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.UpsertTemplate(ctx, "acme", "body", false, "admin"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := st.ActiveTemplate(ctx, "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for inactive template", err)
	}
}

func TestDeleteTemplate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.UpsertTemplate(ctx, "acme", "body", true, "admin"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.DeleteTemplate(ctx, "ACME"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteTemplate(ctx, "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound on second delete", err)
	}
}
