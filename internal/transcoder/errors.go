package transcoder

import "fmt"

// NetworkError is a transcode request that failed in transport or was
// answered with a non-2xx status. Status is 0 for transport failures.
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transcoder: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("transcoder: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BadResponseError is a 2xx response whose payload could not be used.
type BadResponseError struct {
	Reason string
	Err    error
}

func (e *BadResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcoder: bad response: %s: %v", e.Reason, e.Err)
	}
	return "transcoder: bad response: " + e.Reason
}

func (e *BadResponseError) Unwrap() error { return e.Err }
