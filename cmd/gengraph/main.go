package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/testgraph"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var seed int64
	cmd := &cobra.Command{
		Use:   "gengraph <vertices>",
		Short: "Write a random edge list for the ranker",
		Long: `Writes a random directed graph to stdout: a cycle through every vertex
followed by up to nine extra edges per vertex. Vertex ids are drawn from
[1, 10*vertices].`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return apperrors.Usagef("expected 1 argument, got %d", len(args))
			}
			if n, err := strconv.Atoi(args[0]); err != nil || n <= 0 {
				return apperrors.Usagef("vertices must be a positive integer, got %q", args[0])
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := strconv.Atoi(args[0])
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			if _, err := testgraph.Generate(cmd.OutOrStdout(), n, rand.New(rand.NewSource(seed))); err != nil {
				return apperrors.IO("writing graph", err)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: current time)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Usagef("%v", err)
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return apperrors.ExitOK
	}
	if errors.Is(err, apperrors.ErrUsage) {
		fmt.Fprintln(stderr, "Missing one or more required arguments")
		fmt.Fprintln(stderr, "Usage: gengraph <vertices>")
	} else {
		fmt.Fprintln(stderr, "gengraph:", err)
	}
	return apperrors.ExitCode(err)
}
