package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragpack/internal/version"
	"github.com/kailas-cloud/ragpack/pkg/ragpack"
)

const defaultAddr = "http://localhost:8080"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	addr    string
	apiKey  string
	timeout time.Duration
	json    bool
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "ragpackctl",
		Short: "Build retrieval context and chat through a ragpack service",
		Long: `ragpackctl sends a conversation to a ragpack service, which retrieves
supporting passages, checks the question is in scope and packs the
evidence into a token-bounded context block.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&g.addr, "addr", envOr("RAGPACK_ADDR", defaultAddr), "service base URL")
	pf.StringVar(&g.apiKey, "api-key", os.Getenv("RAGPACK_API_KEY"), "bearer API key")
	pf.DurationVar(&g.timeout, "timeout", 60*time.Second, "request timeout")
	pf.BoolVar(&g.json, "json", false, "print raw JSON")

	root.AddCommand(
		newContextCmd(g),
		newChatCmd(g),
		newRememberCmd(g),
		newHealthCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globalFlags) client() (*ragpack.Client, error) {
	c, err := ragpack.New(g.addr,
		ragpack.WithAPIKey(g.apiKey),
		ragpack.WithTimeout(g.timeout),
		ragpack.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of ragpackctl",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
