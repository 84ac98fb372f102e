package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

func TestOpen_RejectsMalformedURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://garagebook@localhost:notaport/garagebook", PoolConfig{})
	if err == nil || !strings.Contains(err.Error(), "parse database url") {
		t.Fatalf("err = %v, want a parse error", err)
	}
}

func TestPoolConfig_Apply(t *testing.T) {
	connCfg, err := pgx.ParseConfig("postgres://garagebook@localhost:5432/garagebook")
	if err != nil {
		t.Fatalf("ParseConfig error: %v", err)
	}
	db := stdlib.OpenDB(*connCfg)
	t.Cleanup(func() { _ = db.Close() })

	PoolConfig{MaxOpenConns: 3, ConnMaxLifetime: time.Minute}.apply(db)
	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("max open = %d, want 3", got)
	}

	PoolConfig{}.apply(db)
	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("zero config changed max open to %d", got)
	}
}
