// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or JSON) and, when journald is reachable, to the
// systemd journal as well. Each module gets its own *slog.Logger carrying a
// "module" attribute and a level that can be overridden in configuration:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"encoder": "debug",
//			"api":     "warn",
//		},
//	})
//
//	logger := logging.GetLogger("encoder").With("codec", name)
//	logger.Info("Codec configured", "mime", mime)
//
// Loggers may be fetched before Initialize; they start at info level and are
// rebuilt when Initialize runs.
//
// Journal records are tagged SYSLOG_IDENTIFIER=encbench:
//
//	journalctl -t encbench MODULE=encoder
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	encoder = "debug"
package logging
