//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresRunFlow(t *testing.T) {
	ctx := context.Background()
	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("toolspec"),
		tcpostgres.WithUsername("toolspec"),
		tcpostgres.WithPassword("toolspec"),
		tcpostgres.WithSQLDriver("pgx"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	testcontainers.CleanupContainer(t, pg)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if st.Dialect() != "postgres" {
		t.Fatalf("dialect=%s", st.Dialect())
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC()
	if err := st.SaveRun(ctx, record("pg1", "pkg", base)); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveRun(ctx, record("pg2", "pkg", base.Add(time.Second))); err != nil {
		t.Fatal(err)
	}
	runs, err := st.ListRuns(ctx, "pkg", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "pg2" {
		t.Fatalf("order wrong: %+v", runs)
	}
	got, err := st.GetRun(ctx, "pg1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tools != 5 || len(got.Report) == 0 {
		t.Fatalf("unexpected record: %+v", got)
	}
}
