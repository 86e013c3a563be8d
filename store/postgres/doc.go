// Package postgres stores chat history in PostgreSQL through a pgx pool.
//
// It is meant to share the database that backs the pgvector store, keeping
// turns in their own table (default "turns"). Entities are stored as JSONB
// and turns are ordered by a BIGSERIAL sequence.
//
//	hs, err := postgres.NewPostgresHistoryStore(ctx, postgres.PostgresOptions{
//		ConnString: os.Getenv("DATABASE_URL"),
//	})
//	if err != nil {
//		return err
//	}
//	defer hs.Close()
//
// NewPostgresHistoryStoreWithPool accepts any DBPool, which is how the tests
// drive it with pgxmock.
package postgres
