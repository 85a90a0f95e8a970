package transcription

import "errors"

// permanentError marks engine failures that retrying cannot fix, such as a
// request the engine rejected as malformed.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the orchestrator will not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was classified permanent by a provider.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
