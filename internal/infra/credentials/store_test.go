package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestReplicateToken(t *testing.T) {
	store := NewStore(&stubExecutor{token: " r8_abc123 "})
	token, err := store.ReplicateToken(context.Background())
	if err != nil {
		t.Fatalf("ReplicateToken error: %v", err)
	}
	if token != "r8_abc123" {
		t.Fatalf("expected r8_abc123, got %q", token)
	}
}

func TestReplicateToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	token, err := store.ReplicateToken(context.Background())
	if err != nil {
		t.Fatalf("ReplicateToken error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestReplicateToken_Error(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("connection refused")})
	if _, err := store.ReplicateToken(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetReplicateToken(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetReplicateToken(context.Background(), "secret"); err != nil {
		t.Fatalf("SetReplicateToken error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderReplicate {
		t.Fatalf("expected provider argument, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetReplicateTokenEmpty(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetReplicateToken(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
