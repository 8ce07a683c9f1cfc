package runtime

import "github.com/rs/zerolog"

// zlog is an optional structured logger. If unset, the runtime stays silent
// except for the degraded-performance warning, which falls back to the
// standard logger.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the runtime layer.
func SetLogger(l zerolog.Logger) { zlog = &l }
