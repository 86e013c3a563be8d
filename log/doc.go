// Package log provides the small leveled logging interface shared by the
// pipeline, the stores and the sentinel binary.
//
// Two backends are available: DefaultLogger on top of the standard library
// and GologLogger on top of github.com/kataras/golog. Both filter by LogLevel
// before formatting.
//
//	logger, err := log.New("golog", log.LogLevelDebug, os.Stderr)
//	if err != nil {
//		return err
//	}
//	logger.Info("retrieved %d passages", n)
package log
