package convert

import (
	"fmt"
	"strings"
	"time"
)

// SystemCallKind classifies how an external command failed.
type SystemCallKind int

const (
	// FailTimeout means the command was killed after exceeding its deadline.
	FailTimeout SystemCallKind = iota
	// FailExit means the command finished with a non-zero exit status.
	FailExit
	// FailExec means the command could not be started or died abnormally.
	FailExec
)

// SystemCallError is the unified failure of one external command invocation.
// Callers branch on Kind rather than parsing the message.
type SystemCallError struct {
	Kind     SystemCallKind
	Command  []string
	Timeout  time.Duration
	ExitCode int
	Output   string
	Err      error
}

func (e *SystemCallError) Error() string {
	cmd := strings.Join(e.Command, " ")
	switch e.Kind {
	case FailTimeout:
		return fmt.Sprintf("command '%s' timed out after %d seconds", cmd, int(e.Timeout/time.Second))
	case FailExit:
		return fmt.Sprintf("command '%s' failed with exit status %d: %s", cmd, e.ExitCode, e.Output)
	default:
		return fmt.Sprintf("an error occurred while executing command '%s': %v", cmd, e.Err)
	}
}

func (e *SystemCallError) Unwrap() error { return e.Err }

// ValidationError reports conversion options that cannot be used. It is
// raised before any external process is spawned or temp space is claimed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid conversion options: %s", e.Reason)
	}
	return fmt.Sprintf("invalid conversion options: %s: %s", e.Field, e.Reason)
}

// UnsupportedContentTypeError reports a source object that is neither an
// image nor a PDF, the only inputs a conversion strategy exists for.
type UnsupportedContentTypeError struct {
	Key         string
	ContentType string
}

func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("file %q is not an image or PDF: unsupported content type %q", e.Key, e.ContentType)
}

// MissingArtifactError means a conversion tool exited successfully without
// writing an expected artifact.
type MissingArtifactError struct {
	Format string
	Path   string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("conversion produced no %s artifact at %s", e.Format, e.Path)
}
