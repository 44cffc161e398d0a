// Package logging builds bobbin's slog loggers.
//
// Console output prints a header per line ("INFO [workflow] Job #7 (export) –
// message") with fields indented below it; JSON output uses ts/level/msg keys.
// WithContext copies the job, stage, locator and request id from a
// services.Scope onto a logger, and WarnWithContext/ErrorWithContext enforce
// the event_type, error_hint and impact fields on problem reports.
package logging
