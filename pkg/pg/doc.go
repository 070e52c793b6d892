// Package pg provides PostgreSQL bootstrap helpers built on pgx/v5: a
// Config populated from environment variables, Connect with retry, goose
// migrations bridged onto the pgx pool, and error predicates the store
// implementations use to classify constraint violations.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    // terminate: the database never became reachable
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    // refuse to start on a stale schema
//	}
package pg
