package cli

import (
	"fmt"
	"io"
	"reflect"

	json "github.com/goccy/go-json"
)

// Exit codes.
const (
	ExitFailure  = 1
	ExitUsage    = 2
	ExitConfig   = 3
	ExitNotFound = 4
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// PreflightError reports a command that cannot start, with guidance.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string { return e.Message }

// WriteOutput writes v as indented JSON, or one JSON object per line when
// --jsonl is set and v is a slice.
func WriteOutput(out io.Writer, v any) error {
	if IsJSONLOutput() {
		return writeJSONL(out, v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func writeJSONL(out io.Writer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return writeJSONLine(out, v)
	}
	for i := range rv.Len() {
		if err := writeJSONLine(out, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(out io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
