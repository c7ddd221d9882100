package trace

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys used throughout the application
const (
	AttrSessionID = "session.id"
	AttrPersona   = "persona.name"
	AttrVoice     = "voice.name"
)

// SessionAttrs creates attributes for one call or chat session. Voice is
// empty on the text chat path.
func SessionAttrs(sessionID, persona, voice string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrPersona, persona),
		attribute.String(AttrVoice, voice),
	}
}

// RecordError records an error on a span
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
