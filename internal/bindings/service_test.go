package bindings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/forumgram/forumgram/internal/db"
	"github.com/forumgram/forumgram/internal/db/sqlc"
)

func TestBind_NotConfigured(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, err := svc.Bind(context.Background(), "tg123", "u55"); err == nil {
		t.Fatal("expected error when service not configured")
	}
}

func TestBind_InvalidArguments(t *testing.T) {
	svc := NewService(nil, nil, nil)
	tests := []struct {
		name       string
		externalID string
		localID    string
	}{
		{"both empty", "", ""},
		{"empty external", "", "u55"},
		{"empty local", "tg123", ""},
		{"blank external", "   ", "u55"},
		{"blank local", "tg123", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Bind(context.Background(), tt.externalID, tt.localID)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Bind() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestLookupLocal_NotConfigured(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, _, err := svc.LookupLocal(context.Background(), "tg123"); err == nil {
		t.Fatal("expected error when queries nil")
	}
}

func TestLookupExternal_NotConfigured(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, _, err := svc.LookupExternal(context.Background(), "u55"); err == nil {
		t.Fatal("expected error when queries nil")
	}
}

func TestToBinding(t *testing.T) {
	now := time.Now().UTC()
	id := db.NewUUID()
	row := sqlc.Binding{
		ID:         id,
		ExternalID: "tg123",
		LocalID:    "u55",
		CreatedAt:  pgtype.Timestamptz{Time: now, Valid: true},
		UpdatedAt:  pgtype.Timestamptz{Time: now, Valid: true},
	}
	b := toBinding(row)
	if b.ExternalID != "tg123" {
		t.Errorf("ExternalID = %q", b.ExternalID)
	}
	if b.LocalID != "u55" {
		t.Errorf("LocalID = %q", b.LocalID)
	}
	if b.ID != id.String() {
		t.Errorf("ID = %q, want %q", b.ID, id.String())
	}
	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestToBinding_MissingTimestamps(t *testing.T) {
	row := sqlc.Binding{
		ID:         db.NewUUID(),
		ExternalID: "tg123",
		LocalID:    "u55",
	}
	b := toBinding(row)
	if !b.CreatedAt.IsZero() || !b.UpdatedAt.IsZero() {
		t.Error("invalid pg timestamps should map to zero time")
	}
}
