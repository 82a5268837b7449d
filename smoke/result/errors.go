package result

import "fmt"

// NavigationError means the page did not resolve or did not settle within
// the navigation timeout. It is always fatal to the run.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// AssertionError is the first hard check that failed.
type AssertionError struct {
	Check  string
	Detail string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: %s", e.Check, e.Detail)
}
