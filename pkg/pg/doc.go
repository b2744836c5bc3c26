// Package pg bootstraps PostgreSQL access on top of pgx/v5.
//
// Connect builds a *pgxpool.Pool from an env-driven Config and retries until
// the database answers a ping. Migrate applies goose migrations from an
// fs.FS (the service embeds its SQL files). WithTx wraps a unit of work in a
// transaction, and the Is*Error helpers classify driver errors so stores can
// translate them into domain errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//	    return err
//	}
package pg
