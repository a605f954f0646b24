package http

import "fmt"

// TransportError reports a request that produced no HTTP response: an
// invalid URL, an encoding failure, a network error or an unreadable body.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
