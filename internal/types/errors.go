package types

import "fmt"

// BundleError reports a missing or invalid extension bundle. It aborts a run
// before any remote session is created.
type BundleError struct {
	ProjectID string
	Reason    string
	Err       error
}

func (e *BundleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bundle for project %s: %s: %v", e.ProjectID, e.Reason, e.Err)
	}
	return fmt.Sprintf("bundle for project %s: %s", e.ProjectID, e.Reason)
}

func (e *BundleError) Unwrap() error { return e.Err }

// SessionError reports that the remote browser provider was unreachable or
// rejected session creation. Fatal to the run.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// AssertionError is a failed matcher inside the sandboxed script. Expected
// per-test behavior: captured into the test result, never propagated.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string { return e.Message }
