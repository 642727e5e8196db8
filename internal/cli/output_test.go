package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Emit(map[string]int{"habits": 2}, func(w io.Writer) {
		t.Fatal("text writer must not be called in json mode")
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Emit(nil, func(w io.Writer) {
		fmt.Fprint(w, "hello")
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"NAME", "STREAK"}, [][]string{{"Read", "3"}})
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Read")
	assert.Contains(t, out, "3")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "exit error", err: NewExitError(ExitCommandError, "bad flag"), want: ExitCommandError},
		{name: "wrapped exit error", err: fmt.Errorf("outer: %w", NewExitError(ExitFailure, "missing")), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitFailure, "write export", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "write export: disk full", err.Error())
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
}
