// Package invokecmder provides the invoke command: resolve an intent and
// dispatch it to a primitive or protocol.
package invokecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/start"
)

// Exit codes surfaced to shells. Scripts branch on these.
const (
	ExitGeneralError    = 1
	ExitInvalidInput    = 2
	ExitNotFound        = 3
	ExitPhysicsViolated = 4
)

// ExitError carries a process exit code alongside the error. The main
// entrypoint unwraps it to set the exit status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitCodeFor maps the closed error taxonomy onto exit codes.
func exitCodeFor(kind string) int {
	switch kind {
	case primitive.KindInvalidInputs:
		return ExitInvalidInput
	case primitive.KindNotFound,
		primitive.KindIntentNotFound,
		primitive.KindPrimitiveNotFound,
		primitive.KindProtocolNotFound:
		return ExitNotFound
	case primitive.KindPhysicsViolation:
		return ExitPhysicsViolated
	default:
		return ExitGeneralError
	}
}

const invokeLongDesc string = `Dispatch an intent to the graph virtual machine.

The intent resolves to a protocol entity or a registered primitive.
Resolution tries the verbatim name, then the protocol- and primitive-
prefixed forms, normalizing dashes and underscores; protocols win ties.

Inputs are given as repeated key=value flags or as a single JSON object.
On success the result is printed as JSON and the exit code is 0. Errors
map onto exit codes: 2 invalid inputs, 3 not found, 4 physics violation,
1 anything else.

Examples:
  chora invoke manifest-entity --input entity_type=learning --input title="Roots follow water"
  chora invoke manage_bond --json '{"verb":"yields","from":"inquiry-roots","to":"learning-osmosis"}'
  chora invoke protocol-morning-review`

const invokeShortDesc string = "Dispatch an intent"

func NewInvokeCmd() *cobra.Command {
	var (
		inputPairs []string
		inputJSON  string
	)

	cmd := &cobra.Command{
		Use:   "invoke <intent>",
		Short: invokeShortDesc,
		Long:  invokeLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInvoke(args[0], inputPairs, inputJSON, configDir, debug)
		},
	}

	cmd.Flags().StringArrayVarP(&inputPairs, "input", "i", nil, "Input as key=value (repeatable)")
	cmd.Flags().StringVar(&inputJSON, "json", "", "Inputs as a JSON object")

	return cmd
}

func runInvoke(intent string, pairs []string, rawJSON, configDir string, debug bool) error {
	inputs, err := parseInputs(pairs, rawJSON)
	if err != nil {
		return &ExitError{Code: ExitInvalidInput, Err: err}
	}

	s, err := start.Open(start.Options{ConfigDir: configDir, Debug: debug, Sink: os.Stdout})
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Engine.Dispatch(context.Background(), intent, inputs, s.Exec())
	if !res.OK {
		return &ExitError{
			Code: exitCodeFor(res.ErrorKind),
			Err:  fmt.Errorf("%s: %s", res.ErrorKind, res.ErrorMessage),
		}
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// parseInputs merges --json (if any) with --input key=value pairs; the
// pairs win on key collisions. Values that parse as JSON are kept typed,
// anything else stays a string.
func parseInputs(pairs []string, rawJSON string) (map[string]any, error) {
	inputs := map[string]any{}

	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &inputs); err != nil {
			return nil, fmt.Errorf("parsing --json: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", pair)
		}

		var typed any
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			inputs[key] = typed
		} else {
			inputs[key] = value
		}
	}

	return inputs, nil
}
