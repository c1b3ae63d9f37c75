package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragpack/pkg/ragpack"
)

// turnFlags describe one conversation turn on the command line.
type turnFlags struct {
	messages  string
	query     string
	required  []string
	size      int
	language  string
	maxTokens int
	prefix    string
}

func (t *turnFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&t.messages, "messages", "m", "", `JSON file with prior messages [{"role","content"}], "-" for stdin`)
	f.StringVarP(&t.query, "query", "q", "", "retrieval query (default: the latest user message)")
	f.StringArrayVarP(&t.required, "require", "r", nil, "phrase every retrieved chunk must contain (repeatable)")
	f.IntVar(&t.size, "size", 0, "number of chunks to retrieve (0 = server default)")
	f.StringVar(&t.language, "language", "", "only retrieve chunks in this language")
	f.IntVar(&t.maxTokens, "max-context-tokens", 0, "override the model context window (0 = server default)")
	f.StringVar(&t.prefix, "context-prefix", "", "override the text placed before the context block")
}

// turn reads prior messages and appends the positional question as the newest user message.
func (t *turnFlags) turn(cmd *cobra.Command, args []string) (ragpack.Turn, error) {
	var msgs []ragpack.Message
	if t.messages != "" {
		var err error
		if msgs, err = readMessages(cmd.InOrStdin(), t.messages); err != nil {
			return ragpack.Turn{}, err
		}
	}
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		msgs = append(msgs, ragpack.User(q))
	}
	if len(msgs) == 0 {
		return ragpack.Turn{}, errors.New("no conversation: pass a question or --messages")
	}

	turn := ragpack.Turn{Query: t.query, Required: t.required, Messages: msgs, Size: t.size}
	if t.language != "" {
		turn.Scope = &ragpack.Scope{Language: t.language}
	}
	if cmd.Flags().Changed("max-context-tokens") || cmd.Flags().Changed("context-prefix") {
		turn.Settings = &ragpack.Settings{}
		if cmd.Flags().Changed("max-context-tokens") {
			turn.Settings.MaxContextTokens = ragpack.Int(t.maxTokens)
		}
		if cmd.Flags().Changed("context-prefix") {
			turn.Settings.ContextPrefix = ragpack.String(t.prefix)
		}
	}
	return turn, nil
}

type messageJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func readMessages(stdin io.Reader, path string) ([]ragpack.Message, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // user-supplied input file
		if err != nil {
			return nil, fmt.Errorf("open messages: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var raw []messageJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	out := make([]ragpack.Message, len(raw))
	for i, m := range raw {
		out[i] = ragpack.Message{Role: ragpack.Role(m.Role), Content: m.Content}
	}
	return out, nil
}
