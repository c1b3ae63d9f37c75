// Package packing assembles retrieved chunks into a token-bounded context block.
package packing

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain/budget"
	"github.com/kailas-cloud/ragpack/internal/domain/chunk"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/logger"
	"github.com/kailas-cloud/ragpack/internal/metrics"
	"github.com/kailas-cloud/ragpack/internal/tokenizer"
)

// Reason explains why packing stopped or produced nothing.
type Reason string

// Packing reasons.
const (
	ReasonPacked             Reason = "packed"
	ReasonTruncated          Reason = "truncated"
	ReasonNoChunks           Reason = "no_chunks"
	ReasonBudgetExhausted    Reason = "budget_exhausted"
	ReasonBudgetInsufficient Reason = "budget_insufficient"
)

const (
	contextOpen  = "<context>\n"
	contextClose = "</context>"
	documentEnd  = "</document>\n"
	chunkEnd     = "</chunk>\n"
)

// Settings are the per-conversation token limits.
type Settings struct {
	MaxContextTokens        int
	ReserveCompletionTokens int
	ReserveHeadroomTokens   int
	ContextPrefix           string
}

// Packed is the assembled block plus counters.
type Packed struct {
	Text          string
	DocumentsSeen int
	ChunksAdded   int
	TokensUsed    int
	Budget        int
	Reason        Reason
}

// Empty reports whether no context was produced.
func (p Packed) Empty() bool { return p.Text == "" }

// Packer greedily fills the budget in ranked order.
type Packer struct {
	counter tokenizer.Counter
	logger  *zap.Logger
}

// New creates a packer measuring with counter.
func New(counter tokenizer.Counter, log *zap.Logger) *Packer {
	return &Packer{counter: counter, logger: log}
}

// Budget computes the context allowance for the conversation.
func (p *Packer) Budget(msgs []message.Message, s Settings) budget.Context {
	return budget.Context{
		MaxContext:        s.MaxContextTokens,
		Conversation:      tokenizer.CountMessages(p.counter, msgs),
		Prefix:            p.counter.Count(s.ContextPrefix),
		ReserveCompletion: s.ReserveCompletionTokens,
		ReserveHeadroom:   s.ReserveHeadroomTokens,
	}
}

type group struct {
	name   string
	chunks []*chunk.Chunk
}

type packedDoc struct {
	name   string
	chunks []string
}

// Pack groups chunks by document in first-seen order and adds them until the
// budget runs out. Truncation is in order: a chunk that does not fit closes its
// document without trying the chunks after it, and a document wrapper that does
// not fit ends packing. The token count of the returned text never exceeds the budget.
func (p *Packer) Pack(ctx context.Context, msgs []message.Message, s Settings, chunks []chunk.Chunk) Packed {
	log := logger.FromContext(ctx, p.logger)

	b := p.Budget(msgs, s)
	out := Packed{Budget: b.Available()}

	if b.Exhausted() {
		return p.skip(log, out, ReasonBudgetExhausted, zap.Int("raw_budget", b.Raw()), zap.Int("used", b.Used()))
	}

	groups := groupByDocument(chunks)
	if len(groups) == 0 {
		return p.skip(log, out, ReasonNoChunks)
	}

	remaining := out.Budget - p.counter.Count(contextOpen) - p.counter.Count(contextClose)
	truncated := false
	var docs []packedDoc

	for _, g := range groups {
		out.DocumentsSeen++

		open := documentStart(g.name)
		wrapper := p.counter.Count(open) + p.counter.Count(documentEnd)
		if wrapper > remaining {
			truncated = true
			break
		}

		doc := packedDoc{name: g.name}
		left := remaining - wrapper
		for _, c := range g.chunks {
			piece := renderChunk(c)
			cost := p.counter.Count(piece)
			if cost > left {
				// Close this document; later documents may still fit.
				truncated = true
				break
			}
			doc.chunks = append(doc.chunks, piece)
			left -= cost
		}

		if len(doc.chunks) > 0 {
			docs = append(docs, doc)
			remaining = left
		}
	}

	text := render(docs)
	// Guard against counters that are not subadditive: drop trailing chunks until the whole fits.
	for text != "" && p.counter.Count(text) > out.Budget {
		docs = dropLast(docs)
		truncated = true
		text = render(docs)
	}

	if text == "" {
		return p.skip(log, out, ReasonBudgetInsufficient, zap.Int("budget", out.Budget))
	}

	out.Text = text
	out.TokensUsed = p.counter.Count(text)
	for _, d := range docs {
		out.ChunksAdded += len(d.chunks)
	}
	out.Reason = ReasonPacked
	if truncated {
		out.Reason = ReasonTruncated
	}

	metrics.PackedTokens.Observe(float64(out.TokensUsed))
	metrics.PackedChunks.Observe(float64(out.ChunksAdded))
	log.Debug("Context packed",
		zap.Int("budget", out.Budget),
		zap.Int("tokens_used", out.TokensUsed),
		zap.Int("documents_seen", out.DocumentsSeen),
		zap.Int("chunks_added", out.ChunksAdded),
		zap.String("reason", string(out.Reason)),
	)
	return out
}

func (p *Packer) skip(log *zap.Logger, out Packed, reason Reason, fields ...zap.Field) Packed {
	out.Reason = reason
	metrics.PackSkippedTotal.WithLabelValues(string(reason)).Inc()
	log.Info("Context packing skipped", append([]zap.Field{zap.String("reason", string(reason))}, fields...)...)
	return out
}

// groupByDocument groups non-blank chunks by document label, keeping first-seen
// document order and ranked order within each document.
func groupByDocument(chunks []chunk.Chunk) []group {
	var groups []group
	index := make(map[string]int)
	for i := range chunks {
		c := &chunks[i]
		if c.IsBlank() {
			continue
		}
		name := c.DocumentLabel()
		gi, ok := index[name]
		if !ok {
			gi = len(groups)
			index[name] = gi
			groups = append(groups, group{name: name})
		}
		groups[gi].chunks = append(groups[gi].chunks, c)
	}
	return groups
}

func documentStart(name string) string {
	return fmt.Sprintf("<document name=\"%s\">\n", html.EscapeString(name))
}

func renderChunk(c *chunk.Chunk) string {
	var b strings.Builder
	b.WriteString("<chunk")
	if c.SectionTitle() != "" {
		b.WriteString(` section="`)
		b.WriteString(html.EscapeString(c.SectionTitle()))
		b.WriteByte('"')
	}
	if c.PageNumber() > 0 {
		b.WriteString(` page="`)
		b.WriteString(strconv.Itoa(c.PageNumber()))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.WriteString(c.NormalizedText())
	b.WriteString(chunkEnd)
	return b.String()
}

func render(docs []packedDoc) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextOpen)
	for _, d := range docs {
		b.WriteString(documentStart(d.name))
		for _, c := range d.chunks {
			b.WriteString(c)
		}
		b.WriteString(documentEnd)
	}
	b.WriteString(contextClose)
	return b.String()
}

func dropLast(docs []packedDoc) []packedDoc {
	if len(docs) == 0 {
		return docs
	}
	last := &docs[len(docs)-1]
	last.chunks = last.chunks[:len(last.chunks)-1]
	if len(last.chunks) == 0 {
		return docs[:len(docs)-1]
	}
	return docs
}
