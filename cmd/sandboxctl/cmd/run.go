package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/runner"
)

var (
	runAgentID string
	runVars    []string
	runPretty  bool
)

var runCmd = &cobra.Command{
	Use:   "run <module.yaml>",
	Short: "Run a module to completion with the synchronous executor (C5)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		module, err := mdl.Load(args[0])
		if err != nil {
			return fmt.Errorf("load %q: %w", args[0], err)
		}
		if errs := mdl.Validate(module); len(errs) > 0 {
			return fmt.Errorf("module failed validation: %s", strings.Join(errs, "; "))
		}

		assignment, err := parseVarFlags(runVars)
		if err != nil {
			return err
		}
		bound := mdl.Bind(module, assignment)

		agent, err := resolveAgent(runAgentID)
		if err != nil {
			return err
		}

		r, err := runner.New(bound, agent, runAgentID)
		if err != nil {
			return fmt.Errorf("construct executor: %w", err)
		}

		result, err := r.Run(context.Background())
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		out, err := result.ToJSON(runPretty)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(out)
		return nil
	},
}

// parseVarFlags turns repeated --var name=value flags into a variable
// binding map, attempting int/float/bool coercion before falling back
// to the literal string, since variable bindings are typed per
// spec.md §3 but the CLI only ever sees strings.
func parseVarFlags(vars []string) (map[string]any, error) {
	out := make(map[string]any, len(vars))
	for _, v := range vars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", v)
		}
		out[parts[0]] = coerceVarValue(parts[1])
	}
	return out, nil
}

func coerceVarValue(raw string) any {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func init() {
	runCmd.Flags().StringVar(&runAgentID, "agent", "stub", "agent id: \"stub\", or any other id for the OpenAI-compatible agent (model from LLM_MODEL)")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "variable binding, format name=value (repeatable)")
	runCmd.Flags().BoolVar(&runPretty, "pretty", true, "pretty-print the result JSON")
}
