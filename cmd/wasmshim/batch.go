package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gramcheck/wasmshim"
)

// pair is one line of batch input.
type pair struct {
	line int
	a, b int32
	sum  int32
}

func newBatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file]",
		Short: "Adds whitespace separated pairs, one per line",
		Long: `Reads "a b" pairs, one per line, from file or stdin and adds them
concurrently in the guest, at most --instances at a time. Results are printed
in input order. Blank lines and lines starting with # are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			pairs, err := readPairs(in)
			if err != nil {
				return err
			}
			return o.withShim(cmd.Context(), func(s *wasmshim.Shim) error {
				g, ctx := errgroup.WithContext(cmd.Context())
				g.SetLimit(s.Instances())
				for i := range pairs {
					p := &pairs[i]
					g.Go(func() (err error) {
						if p.sum, err = s.Add(ctx, p.a, p.b); err != nil {
							return fmt.Errorf("line %d: %w", p.line, err)
						}
						return nil
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				for _, p := range pairs {
					fmt.Fprintf(o.stdOut, "%d + %d = %d\n", p.a, p.b, p.sum)
				}
				return nil
			})
		},
	}
}

func readPairs(r io.Reader) ([]pair, error) {
	var pairs []pair
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want two operands, got %q", line, text)
		}
		a, err := parseOperand(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b, err := parseOperand(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pairs = append(pairs, pair{line: line, a: a, b: b})
	}
	return pairs, sc.Err()
}
