package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitUsage, ExitCode(failf(ExitUsage, "bad job id")))
	assert.Equal(t, ExitFailure, ExitCode(failf(ExitFailure, "engine stopped")))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("uncoded")))
}

func TestExitCode_SeesThroughWrapping(t *testing.T) {
	inner := failf(ExitUsage, "no eventlog for job 9")
	assert.Equal(t, ExitUsage, ExitCode(fmt.Errorf("log command: %w", inner)))
}

func TestFailf_WrapsCause(t *testing.T) {
	cause := errors.New("no such file")
	err := failf(ExitUsage, "open store: %w", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "open store: no such file", err.Error())
}
