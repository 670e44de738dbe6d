package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gramcheck/wasmshim"
)

func newAddCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <a> <b>",
		Short: "Adds two int32 operands in the guest",
		Long: `Adds two int32 operands in the guest and prints the sum. Overflow wraps.
Negative operands must follow --, for example: wasmshim add -- -5 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseOperand(args[0])
			if err != nil {
				return err
			}
			b, err := parseOperand(args[1])
			if err != nil {
				return err
			}
			return o.withShim(cmd.Context(), func(s *wasmshim.Shim) error {
				sum, err := s.Add(cmd.Context(), a, b)
				if err != nil {
					return err
				}
				fmt.Fprintf(o.stdOut, "%d + %d = %d\n", a, b, sum)
				return nil
			})
		},
	}
}

func parseOperand(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid operand %q: want a base 10 int32", s)
	}
	return int32(v), nil
}
