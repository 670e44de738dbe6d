package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gramcheck/wasmshim"
	"github.com/gramcheck/wasmshim/internal/version"
)

func newCompileCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Pre-compiles the guest into --cachedir",
		Long: `Compiles and validates the guest, persisting native code into --cachedir
so later commands using the same directory start faster.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.cfg.CacheDir == "" {
				return errors.New("compile needs --cachedir")
			}
			return o.withShim(cmd.Context(), func(*wasmshim.Shim) error {
				fmt.Fprintf(o.stdOut, "compiled %s into %s\n", o.cfg.Wasm, o.cfg.CacheDir)
				return nil
			})
		},
	}
}

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Displays the version of wasmshim and wazero",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(o.stdOut, "wasmshim %s (wazero %s)\n", version.GetVersion(), version.GetWazeroVersion())
		},
	}
}
