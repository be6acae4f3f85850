package pipeline

import (
	"context"
	"errors"
	"fmt"
)

type Category int

const (
	CategoryConfig Category = iota + 1
	CategoryData
)

func (c Category) String() string {
	switch c {
	case CategoryConfig:
		return "configuration"
	case CategoryData:
		return "data"
	}
	return "unknown"
}

// Exit codes
const (
	ExitOK          = 0
	ExitUnexpected  = 1
	ExitConfig      = 2
	ExitData        = 3
	ExitInterrupted = 130
)

// FatalError stops the run without a restart. Artifact names the file or
// setting the operator has to fix.
type FatalError struct {
	Category Category
	Artifact string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s error (%s): %v", e.Category, e.Artifact, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func configFatal(artifact string, err error) error {
	return &FatalError{Category: CategoryConfig, Artifact: artifact, Err: err}
}

func dataFatal(artifact string, err error) error {
	return &FatalError{Category: CategoryData, Artifact: artifact, Err: err}
}

// ExitCode maps a Run result to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		switch fatal.Category {
		case CategoryConfig:
			return ExitConfig
		case CategoryData:
			return ExitData
		}
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitUnexpected
}
