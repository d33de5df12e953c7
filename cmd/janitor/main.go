// Janitor: lambda programada que poda el log de acciones del banco cuando el
// ledger corre en postgres. El límite por guild ya lo aplica el bot al vuelo;
// esto solo mantiene la tabla chica a largo plazo.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	retentionDays := 90
	if v := os.Getenv("ACTION_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retentionDays = n
		}
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	// los deltas caen en cascada
	tag, err := pool.Exec(cctx,
		`DELETE FROM bank_actions WHERE created_at < $1;`, cutoff)
	if err != nil {
		return fmt.Sprintf("prune actions: %v", err), nil
	}
	return fmt.Sprintf("ok: %d acciones podadas", tag.RowsAffected()), nil
}

func main() { lambda.Start(handler) }
