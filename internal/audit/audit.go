package audit

import (
	"github.com/rs/zerolog"

	"ratehub/internal/rates"
)

// Recorder is the structured audit hook invoked by the caller around
// each domain operation. It records the operation name, its fields,
// and the result or error; it never influences the operation itself.
type Recorder struct {
	logger zerolog.Logger
}

// NewRecorder scopes an audit logger.
func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{logger: logger.With().Str("component", "audit").Logger()}
}

// Record logs the outcome of one domain operation.
func (r *Recorder) Record(op string, err error, fields map[string]any) {
	var event *zerolog.Event
	if err != nil {
		event = r.logger.Error().Err(err).Str("result", "ERROR")
	} else {
		event = r.logger.Info().Str("result", "OK")
	}

	event = event.Str("op", op).Str("ts", rates.FormatTime(rates.Now()))
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	event.Msg("domain operation")
}
