package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gramcheck/wasmshim"
	"github.com/gramcheck/wasmshim/internal/arith"
)

var errCheckFailed = errors.New("check failed")

// property is a call whose guest result must equal arith.Add, on every one
// of calls repetitions.
type property struct {
	name  string
	a, b  int32
	calls int
}

var properties = []property{
	{name: "small", a: 2, b: 3, calls: 1},
	{name: "inverse", a: -5, b: 5, calls: 1},
	{name: "wrap", a: math.MaxInt32, b: 1, calls: 1},
	{name: "wrap negative", a: math.MinInt32, b: -1, calls: 1},
	{name: "repeatable", a: 2, b: 3, calls: 100},
}

func newCheckCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Checks the guest against native Go addition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withShim(cmd.Context(), func(s *wasmshim.Shim) error {
				return runCheck(cmd.Context(), s, o.stdOut)
			})
		},
	}
}

// runCheck prints one row per property and returns errCheckFailed if any
// failed. Guest traps count as failures rather than errors, so that every
// property is reported.
func runCheck(ctx context.Context, s *wasmshim.Shim, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tA\tB\tGUEST\tNATIVE\tRESULT")

	failed := false
	for _, p := range properties {
		expected := arith.Add(p.a, p.b)
		guest, result := checkProperty(ctx, s, p, expected)
		if result != "ok" {
			failed = true
		} else if arith.Overflows(p.a, p.b) {
			result = "ok (wrapped)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%s\n", p.name, p.a, p.b, guest, expected, result)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	// Each instance runs its initialization once, so a hook announced more
	// often than that was installed twice.
	installs := s.HookInstalls()
	if installs > s.Instances() {
		failed = true
		fmt.Fprintf(w, "hook installs: %d for %d instances: FAIL\n", installs, s.Instances())
	} else {
		fmt.Fprintf(w, "hook installs: %d for %d instances: ok\n", installs, s.Instances())
	}

	if failed {
		return errCheckFailed
	}
	return nil
}

func checkProperty(ctx context.Context, s *wasmshim.Shim, p property, expected int32) (guest, result string) {
	var first int32
	for i := 0; i < p.calls; i++ {
		sum, err := s.Add(ctx, p.a, p.b)
		if err != nil {
			// Runtime errors carry a multi-line wasm stack trace.
			msg, _, _ := strings.Cut(err.Error(), "\n")
			var trapErr *wasmshim.TrapError
			if errors.As(err, &trapErr) {
				return "trap", "FAIL: " + msg
			}
			return "error", "FAIL: " + msg
		}
		if i == 0 {
			first = sum
		} else if sum != first {
			return fmt.Sprint(sum), fmt.Sprintf("FAIL: call %d returned %d, first returned %d", i+1, sum, first)
		}
	}
	if first != expected {
		return fmt.Sprint(first), "FAIL"
	}
	return fmt.Sprint(first), "ok"
}
