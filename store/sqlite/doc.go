// Package sqlite stores chat history in a single SQLite file.
//
// Turns are kept in one table (default "turns") ordered by an autoincrement
// sequence, so List returns them exactly as they were appended even when
// timestamps collide.
//
//	hs, err := sqlite.NewSqliteHistoryStore(sqlite.SqliteOptions{Path: "./sentinel.db"})
//	if err != nil {
//		return err
//	}
//	defer hs.Close()
//
// The driver is mattn/go-sqlite3 and therefore needs cgo.
package sqlite
