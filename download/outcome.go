package download

import (
	"github.com/threadgoon/threadgoon/failure"
)

// Status is the terminal state of one attachment download
type Status int

const (
	StatusDownloaded Status = iota
	StatusSkipped
	StatusFailed
)

// String returns the status name used in logs and metrics labels
func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReasonAlreadyExists is the skip reason for targets present on disk
const ReasonAlreadyExists = "already exists"

// Outcome is the result of downloading one attachment
type Outcome struct {
	Status        Status
	Path          string
	BytesWritten  int64
	ExpectedBytes int64
	Reason        string
	Err           *failure.Error
}

// Kind returns the failure kind of a failed outcome
func (o Outcome) Kind() failure.Kind {
	if o.Err == nil {
		return failure.KindUnknown
	}
	return o.Err.Kind
}

func downloaded(path string, written, expected int64) Outcome {
	return Outcome{Status: StatusDownloaded, Path: path, BytesWritten: written, ExpectedBytes: expected}
}

func skipped(path string) Outcome {
	return Outcome{Status: StatusSkipped, Path: path, Reason: ReasonAlreadyExists}
}

// Failed returns a failed outcome for an attachment whose download could
// not complete normally, e.g. because the attempt panicked
func Failed(path string, err *failure.Error) Outcome {
	return failed(path, 0, 0, err)
}

func failed(path string, written, expected int64, err *failure.Error) Outcome {
	return Outcome{
		Status:        StatusFailed,
		Path:          path,
		BytesWritten:  written,
		ExpectedBytes: expected,
		Reason:        err.Kind.String(),
		Err:           err,
	}
}
