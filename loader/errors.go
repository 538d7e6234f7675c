package loader

import (
	"errors"
	"fmt"
)

// Kind classifies a load failure.
type Kind int

const (
	// FileNotFound means the input path does not exist.
	FileNotFound Kind = iota + 1
	// UnexpectedLoadError covers every other failure while reading the input.
	UnexpectedLoadError
)

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case UnexpectedLoadError:
		return "UnexpectedLoadError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is against a *Error.
var (
	ErrFileNotFound   = errors.New("file not found")
	ErrUnexpectedLoad = errors.New("unexpected load error")
)

// Error is the only error type returned by Load and Read. No table is
// produced when it is returned.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case FileNotFound:
		return fmt.Sprintf("file not found: %s", e.Path)
	default:
		if e.Path == "" {
			return fmt.Sprintf("error loading dataset: %v", e.Err)
		}
		return fmt.Sprintf("error loading dataset %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFileNotFound:
		return e.Kind == FileNotFound
	case ErrUnexpectedLoad:
		return e.Kind == UnexpectedLoadError
	}
	return false
}

func unexpected(path string, err error) *Error {
	return &Error{Kind: UnexpectedLoadError, Path: path, Err: err}
}
