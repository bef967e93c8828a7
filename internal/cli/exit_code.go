package cli

import "errors"

// Process exit codes reported by pulsectl.
const (
	exitOK      = 0
	exitFailure = 1
	// exitUsage marks bad flags or input files; nothing was written.
	exitUsage = 2
)

// ExitError carries the exit code a command wants the process to end with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func usageError(err error) error {
	return exitCodeError(exitUsage, err)
}

func exitCodeError(code int, err error) error {
	if code <= exitOK || err == nil {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode maps err to a process exit code. Uncoded errors are failures.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var coded *ExitError
	if errors.As(err, &coded) && coded.Code > exitOK {
		return coded.Code
	}
	return exitFailure
}
