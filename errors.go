package optimizer

import "fmt"

// InvalidPassError reports a rubric outside the fixed enumeration. It is
// returned before any external call is attempted and is always recoverable
// by caller correction.
type InvalidPassError struct {
	Requested string
}

func (e *InvalidPassError) Error() string {
	return fmt.Sprintf("invalid improvement pass %q: must be one of readability, seo, aeo, engagement", e.Requested)
}

// ExternalServiceError reports an unreachable provider or a non-success
// status. The research aggregator and image resolver recover from these
// locally; the rewrite call surfaces them because there is no sensible
// empty-content fallback.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// UnparsableResponseError reports a rewrite-service response that could not
// be interpreted as a rewritten document. The raw response is retained for
// diagnostics; nothing is partially applied.
type UnparsableResponseError struct {
	Service string
	Raw     string
	Err     error
}

func (e *UnparsableResponseError) Error() string {
	return fmt.Sprintf("unparsable %s response: %v", e.Service, e.Err)
}

func (e *UnparsableResponseError) Unwrap() error { return e.Err }
