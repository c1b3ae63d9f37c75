package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newContextCmd(g *globalFlags) *cobra.Command {
	tf := &turnFlags{}
	cmd := &cobra.Command{
		Use:   "context [question]",
		Short: "Print the prompt messages the service builds for a turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := tf.turn(cmd, args)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.BuildContext(cmd.Context(), turn)
			if err != nil {
				return fmt.Errorf("build context: %w", err)
			}

			out := cmd.OutOrStdout()
			if g.json {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "status: %s\n", res.Status)
			fmt.Fprintf(out, "chunks: %d retrieved, %d packed (%s), %d/%d tokens\n",
				res.Stats.ChunksRetrieved, res.Stats.ChunksAdded, res.Stats.PackReason,
				res.Stats.TokensUsed, res.Stats.Budget)
			for _, m := range res.Messages {
				fmt.Fprintf(out, "\n[%s]\n%s\n", m.Role, m.Content)
			}
			return nil
		},
	}
	tf.register(cmd)
	return cmd
}

func newChatCmd(g *globalFlags) *cobra.Command {
	tf := &turnFlags{}
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Answer a turn with the service's language model",
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := tf.turn(cmd, args)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.Chat(cmd.Context(), turn)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			if g.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
			return nil
		},
	}
	tf.register(cmd)
	return cmd
}

func newRememberCmd(g *globalFlags) *cobra.Command {
	var (
		messages string
		facts    []string
	)
	cmd := &cobra.Command{
		Use:   "remember",
		Short: "Store facts for a conversation so later turns receive them as memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(facts) == 0 {
				return errors.New("at least one --fact is required")
			}
			msgs, err := readMessages(cmd.InOrStdin(), messages)
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			if err := c.Remember(cmd.Context(), msgs, facts); err != nil {
				return fmt.Errorf("remember: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d facts\n", len(facts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&messages, "messages", "m", "-", `JSON file with the conversation, "-" for stdin`)
	cmd.Flags().StringArrayVarP(&facts, "fact", "f", nil, "fact to store (repeatable)")
	return cmd
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health; exits non-zero when the service is unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}

			out := cmd.OutOrStdout()
			if g.json {
				if err := printJSON(out, h); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "status: %s\n", h.Status)
				names := make([]string, 0, len(h.Checks))
				for name := range h.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %-10s %s\n", name, h.Checks[name])
				}
			}
			if h.Status == "error" {
				return errors.New("service unhealthy")
			}
			return nil
		},
	}
}
