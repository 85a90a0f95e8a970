// Package logger provides structured logging for the assessment backend,
// built on zerolog. Loggers are tagged with a component name and carry
// the clinical record identifiers (document, scene, question, attempt)
// as structured fields so every pipeline event is traceable to the
// response it belongs to.
package logger
