package websession

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// resolveLogger returns l, or the zerolog global logger when l is nil,
// tagged with the component name.
func resolveLogger(l *zerolog.Logger, component string) zerolog.Logger {
	base := log.Logger
	if l != nil {
		base = *l
	}
	return base.With().Str("component", component).Logger()
}

// logStoreError records a failure swallowed at a backend boundary. Corrupt
// records are worth a warning, plain misses and I/O errors are not.
func logStoreError(logger zerolog.Logger, op, id string, err error) {
	event := logger.Debug()
	if isFormatError(err) {
		event = logger.Warn()
	}
	event.Err(err).Str("op", op).Str("session_id", shortID(id)).Msg("session store operation failed")
}
