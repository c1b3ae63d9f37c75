package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/ragpack/internal/domain"
	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/usecase/chat"
	"github.com/kailas-cloud/ragpack/internal/usecase/contextbuild"
	healthuc "github.com/kailas-cloud/ragpack/internal/usecase/health"
	"github.com/kailas-cloud/ragpack/internal/usecase/packing"
	"github.com/kailas-cloud/ragpack/internal/usecase/scope"
)

// --- Mocks ---

type mockBuilder struct {
	res contextbuild.Result
	err error
	got contextbuild.Request
}

func (m *mockBuilder) Build(_ context.Context, req contextbuild.Request) (contextbuild.Result, error) {
	m.got = req
	return m.res, m.err
}

type mockChatter struct {
	reply chat.Reply
	err   error
}

func (m *mockChatter) Reply(_ context.Context, _ contextbuild.Request) (chat.Reply, error) {
	return m.reply, m.err
}

type mockFacts struct {
	err      error
	gotMsgs  []message.Message
	gotFacts []string
}

func (m *mockFacts) Remember(_ context.Context, msgs []message.Message, facts []string) error {
	m.gotMsgs = msgs
	m.gotFacts = facts
	return m.err
}

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type fixture struct {
	builder *mockBuilder
	chatter *mockChatter
	facts   *mockFacts
	health  *mockHealth
	handler http.Handler
}

func defaults() contextbuild.Settings {
	return contextbuild.Settings{
		Packing:      packing.Settings{MaxContextTokens: 8000, ReserveCompletionTokens: 1000, ContextPrefix: "ctx:"},
		MemoryPrefix: "mem:",
	}
}

func newFixture(apiKeys ...string) *fixture {
	f := &fixture{
		builder: &mockBuilder{},
		chatter: &mockChatter{},
		facts:   &mockFacts{},
		health:  &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
	s := NewServer(f.builder, f.chatter, f.facts, f.health, defaults(), zap.NewNop())
	f.handler = s.Router(apiKeys)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

const turnBody = `{"messages":[{"role":"user","content":"refund window?"}]}`

// --- Tests ---

func TestBuildContext_ReturnsMessagesAndStats(t *testing.T) {
	f := newFixture()
	f.builder.res = contextbuild.Result{
		Status: scope.ContextAdded,
		Messages: []message.Message{
			message.Must(message.System, "ctx:<context>...</context>"),
			message.Must(message.User, "refund window?"),
		},
		Stats: contextbuild.Stats{ChunksAdded: 2, TokensUsed: 120, PackReason: packing.ReasonPacked},
	}

	rr := f.do(http.MethodPost, "/v1/context", turnBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[ContextResponse](t, rr)
	if resp.Status != "CONTEXT_ADDED" || len(resp.Messages) != 2 || resp.Messages[0].Role != "system" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Stats.ChunksAdded != 2 || resp.Stats.PackReason != "packed" {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestBuildContext_AppliesSettingsAndScope(t *testing.T) {
	f := newFixture()
	body := `{
		"query": "refunds",
		"required": ["store credit"],
		"messages": [{"role":"user","content":"hi"}],
		"settings": {"max_context_tokens": 4000, "memory_prefix": "facts:"},
		"scope": {"language": "en", "must_not": [{"key": "page_number", "range": {"gte": 10}}]},
		"size": 5
	}`

	if rr := f.do(http.MethodPost, "/v1/context", body); rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	got := f.builder.got
	if got.Query != "refunds" || got.Size != 5 {
		t.Errorf("query/size = %q/%d", got.Query, got.Size)
	}
	if len(got.Required) != 1 || got.Required[0] != "store credit" {
		t.Errorf("required = %v", got.Required)
	}
	if got.Settings.Packing.MaxContextTokens != 4000 || got.Settings.MemoryPrefix != "facts:" {
		t.Errorf("settings = %+v", got.Settings)
	}
	if got.Settings.Packing.ReserveCompletionTokens != 1000 || got.Settings.Packing.ContextPrefix != "ctx:" {
		t.Errorf("defaults not kept: %+v", got.Settings)
	}
	if len(got.Scope.Must()) != 1 || got.Scope.Must()[0].Match() != "en" || len(got.Scope.MustNot()) != 1 {
		t.Errorf("scope must=%v mustNot=%v", got.Scope.Must(), got.Scope.MustNot())
	}
}

func TestBuildContext_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{`, CodeBadRequest},
		{"unknown field", `{"messages":[],"bogus":1}`, CodeBadRequest},
		{"bad role", `{"messages":[{"role":"robot","content":"x"}]}`, CodeValidationFailed},
		{"negative budget", `{"messages":[],"settings":{"max_context_tokens":-1}}`, CodeValidationFailed},
		{"unknown filter field", `{"messages":[],"scope":{"must":[{"key":"color","match":"red"}]}}`, CodeValidationFailed},
		{"match and range", `{"messages":[],"scope":{"must":[{"key":"page_number","match":"1","range":{"gte":1}}]}}`, CodeValidationFailed},
		{"negative size", `{"messages":[],"size":-3}`, CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := newFixture().do(http.MethodPost, "/v1/context", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if resp := decode[ErrorResponse](t, rr); resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
		})
	}
}

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{fmt.Errorf("x: %w", domain.ErrInvalidRequest), http.StatusBadRequest, CodeValidationFailed},
		{fmt.Errorf("x: %w", domain.ErrCompletionFailed), http.StatusBadGateway, CodeCompletionFailed},
		{fmt.Errorf("x: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, CodeEmbeddingProviderError},
		{fmt.Errorf("x: %w", domain.ErrFactStoreUnavailable), http.StatusServiceUnavailable, CodeFactStoreUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newFixture()
			f.builder.err = tt.err

			rr := f.do(http.MethodPost, "/v1/context", turnBody)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			resp := decode[ErrorResponse](t, rr)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "x:") || strings.Contains(resp.Message, "boom") {
				t.Errorf("internal detail leaked: %q", resp.Message)
			}
		})
	}
}

func TestChat_ReturnsReply(t *testing.T) {
	f := newFixture()
	f.chatter.reply = chat.Reply{Status: scope.PromptOutOfScope, Text: "out of scope"}

	rr := f.do(http.MethodPost, "/v1/chat", turnBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[ChatResponse](t, rr)
	if resp.Status != "PROMPT_OUT_OF_SCOPE" || resp.Reply != "out of scope" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestChat_NotConfigured(t *testing.T) {
	s := NewServer(&mockBuilder{}, nil, &mockFacts{}, &mockHealth{}, defaults(), zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(turnBody))
	rr := httptest.NewRecorder()
	s.Router(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rr.Code)
	}
}

func TestUpdateFacts(t *testing.T) {
	f := newFixture()
	body := `{"messages":[{"role":"user","content":"I am vegan"}],"facts":["user is vegan"]}`

	rr := f.do(http.MethodPut, "/v1/facts", body)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(f.facts.gotMsgs) != 1 || len(f.facts.gotFacts) != 1 || f.facts.gotFacts[0] != "user is vegan" {
		t.Errorf("got msgs=%v facts=%v", f.facts.gotMsgs, f.facts.gotFacts)
	}
}

func TestUpdateFacts_StoreUnavailable(t *testing.T) {
	f := newFixture()
	f.facts.err = domain.ErrFactStoreUnavailable

	rr := f.do(http.MethodPut, "/v1/facts", `{"messages":[{"role":"user","content":"x"}],"facts":[]}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture("secret")
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
			}

			rr := f.do(http.MethodGet, "/health", "")
			if rr.Code != tt.code {
				t.Fatalf("status = %d, want %d", rr.Code, tt.code)
			}
			resp := decode[HealthResponse](t, rr)
			if resp.Status != string(tt.status) || resp.Checks["database"] != "ok" {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestRouter_AuthProtectsV1Only(t *testing.T) {
	f := newFixture("secret")

	if rr := f.do(http.MethodPost, "/v1/context", turnBody); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /v1/context: got %d, want 401", rr.Code)
	}
	if rr := f.do(http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("/metrics: got %d, want 200", rr.Code)
	}
	if rr := f.do(http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("/health: got %d, want 200", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/context", strings.NewReader(turnBody))
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated /v1/context: got %d, want 200", rr.Code)
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	rr := newFixture().do(http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestJSONRecoverer(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := JSONRecoverer(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeInternalError {
		t.Errorf("code = %q", resp.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("expected panic to be logged")
	}
}
