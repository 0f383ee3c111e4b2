// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/render"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// fakeAPI serves chat completions from a fixed list of fragments and
// records request bodies.
type fakeAPI struct {
	mu        sync.Mutex
	fragments []string
	status    int
	requests  []map[string]any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		w.WriteHeader(http.StatusOK)
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.requests = append(f.requests, body)
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
		return
	}

	if stream, _ := body["stream"].(bool); !stream {
		resp := map[string]any{
			"id":    "c1",
			"model": body["model"],
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": strings.Join(f.fragments, "")}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, text := range f.fragments {
		chunk, _ := json.Marshal(map[string]any{
			"id":    "c1",
			"model": body["model"],
			"choices": []map[string]any{
				{"delta": map[string]any{"content": text}, "finish_reason": nil},
			},
		})
		io.WriteString(w, "data: "+string(chunk)+"\n\n")
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type testEnv struct {
	api     *fakeAPI
	server  *httptest.Server
	cfgPath string
	dataDir string
}

func newTestEnv(t *testing.T, fragments ...string) *testEnv {
	t.Helper()
	for _, k := range []string{config.EnvConfig, config.EnvModel, config.EnvAPIKey, config.EnvBaseURL} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())

	api := &fakeAPI{fragments: fragments}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	env := &testEnv{
		api:     api,
		server:  server,
		cfgPath: filepath.Join(dir, "config.toml"),
		dataDir: filepath.Join(dir, "data"),
	}

	cfg := config.Default()
	cfg.DataDir = env.dataDir
	cfg.Streaming = true
	cfg.Network.RequestsPerMinute = 0
	cfg.Models = []config.ModelEntry{
		{Name: "deepseek-chat", APIKey: "sk-test-1", BaseURL: server.URL},
		{Name: "deepseek-reasoner", APIKey: "sk-test-2", BaseURL: server.URL},
	}
	cfg.Model = "deepseek-chat"
	require.NoError(t, config.SaveTOML(cfg, env.cfgPath))
	return env
}

// run executes the command tree with args and returns stdout and stderr.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	a.in = strings.NewReader(stdin)
	a.out = &out
	a.errOut = &errOut

	root := newRootCommand(a)
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := root.Execute()
	return ansi.Strip(out.String()), ansi.Strip(errOut.String()), err
}

var codeReply = []string{"Here:\n``", "`go\nfmt.Println(1)\n`", "``\nDone."}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsAndRefencesCode(t *testing.T) {
	env := newTestEnv(t, codeReply...)

	out, _, err := env.run(t, "", "ask", "show", "code")
	require.NoError(t, err)
	assert.Equal(t, "Here:\n```go\nfmt.Println(1)\n```\nDone.\n", out)

	require.Equal(t, 1, env.api.requestCount())
	assert.Equal(t, true, env.api.requests[0]["stream"])
	assert.Equal(t, "deepseek-chat", env.api.requests[0]["model"])
}

func TestAsk_PromptFromStdin(t *testing.T) {
	env := newTestEnv(t, "ok")

	out, _, err := env.run(t, "piped prompt\n", "ask", "-")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	msgs := env.api.requests[0]["messages"].([]any)
	last := msgs[len(msgs)-1].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "piped prompt", last["content"])
}

func TestAsk_NoStreamAndStats(t *testing.T) {
	env := newTestEnv(t, "whole ", "answer")

	out, errOut, err := env.run(t, "", "ask", "--no-stream", "--stats", "hi")
	require.NoError(t, err)
	assert.Equal(t, "whole answer\n", out)
	assert.Contains(t, errOut, "Tokens:")
	assert.Contains(t, errOut, "Response time:")
	assert.Equal(t, false, env.api.requests[0]["stream"])
}

func TestAsk_ModelFlag(t *testing.T) {
	env := newTestEnv(t, "ok")

	_, _, err := env.run(t, "", "--model", "deepseek-reasoner", "ask", "hi")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-reasoner", env.api.requests[0]["model"])

	_, _, err = env.run(t, "", "--model", "nope", "ask", "hi")
	assert.Error(t, err)
}

func TestAsk_RequestErrorIsReturned(t *testing.T) {
	env := newTestEnv(t)
	env.api.status = http.StatusBadRequest

	out, _, err := env.run(t, "", "ask", "hi")
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestAsk_EmptyPrompt(t *testing.T) {
	env := newTestEnv(t, "ok")

	_, _, err := env.run(t, "   \n", "ask", "-")
	require.Error(t, err)
	assert.Equal(t, 0, env.api.requestCount())
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_SaveListShowDelete(t *testing.T) {
	env := newTestEnv(t, codeReply...)

	_, _, err := env.run(t, "", "ask", "--save", "print one")
	require.NoError(t, err)

	out, _, err := env.run(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "print one")

	out, _, err = env.run(t, "", "history", "list", "--content", "Println")
	require.NoError(t, err)
	assert.Contains(t, out, "print one")

	out, _, err = env.run(t, "", "history", "show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, ">: print one")
	assert.Contains(t, out, "```go\nfmt.Println(1)\n```")
	assert.Contains(t, out, "Done.")

	out, _, err = env.run(t, "n\n", "history", "delete", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Canceled")

	out, _, err = env.run(t, "", "history", "delete", "--yes", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	_, _, err = env.run(t, "", "history", "show", "0")
	assert.Error(t, err)
}

func TestHistory_ClearNeedsYes(t *testing.T) {
	env := newTestEnv(t, "ok")

	_, _, err := env.run(t, "", "ask", "--save", "hi")
	require.NoError(t, err)

	_, _, err = env.run(t, "", "history", "clear")
	require.Error(t, err)

	out, _, err := env.run(t, "", "history", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	_, _, err = env.run(t, "", "history", "show", "0")
	assert.Error(t, err)
}

func TestHistory_ImportTranscript(t *testing.T) {
	env := newTestEnv(t)

	path := filepath.Join(t.TempDir(), "chat.txt")
	transcript := "\n>: hi\nhello there\n\nERROR: API Error: timeout\n\n>: bye\nsee you\n"
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0600))

	out, _, err := env.run(t, "", "history", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 4 messages")

	out, _, err = env.run(t, "", "history", "show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, ">: hi")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "see you")
	assert.NotContains(t, out, "timeout")

	_, _, err = env.run(t, "\n\n", "history", "import", "-")
	assert.Error(t, err)
}

func TestExport_WritesFile(t *testing.T) {
	env := newTestEnv(t, codeReply...)
	_, _, err := env.run(t, "", "ask", "--save", "print one")
	require.NoError(t, err)

	dir := t.TempDir()
	out, _, err := env.run(t, "", "export", "0", "--format", "json", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to ")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))

	_, _, err = env.run(t, "", "export", "0", "--format", "pdf", "--out", dir)
	assert.Error(t, err)
}

// =============================================================================
// LINE-MODE CHAT
// =============================================================================

func TestChat_PipedSession(t *testing.T) {
	env := newTestEnv(t, "hello back")

	input := strings.Join([]string{
		"hello",
		"/models",
		"/bogus",
		"/model deepseek-reasoner",
		"again",
		"/quit",
	}, "\n") + "\n"

	out, errOut, err := env.run(t, input, "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "emochat")
	assert.Contains(t, out, "hello back")
	assert.Contains(t, out, "* deepseek-chat")
	assert.Contains(t, out, "  deepseek-reasoner")
	assert.Contains(t, out, "Model: deepseek-reasoner")
	assert.Contains(t, errOut, "Unknown command: /bogus")

	require.Equal(t, 2, env.api.requestCount())
	assert.Equal(t, "deepseek-chat", env.api.requests[0]["model"])
	assert.Equal(t, "deepseek-reasoner", env.api.requests[1]["model"])

	// The second turn carries the first exchange.
	msgs := env.api.requests[1]["messages"].([]any)
	var contents []string
	for _, m := range msgs {
		contents = append(contents, m.(map[string]any)["content"].(string))
	}
	assert.Contains(t, contents, "hello")
	assert.Contains(t, contents, "hello back")
	assert.Equal(t, "again", contents[len(contents)-1])

	out, _, err = env.run(t, "", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestChat_CopyAndStreamingCommands(t *testing.T) {
	env := newTestEnv(t, codeReply...)

	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	out, errOut, err := env.run(t, "/copy\nshow\n/copy\n/streaming off\nagain\n", "chat", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, errOut, "No code block to copy")
	assert.Contains(t, out, "Copied code block")
	assert.Equal(t, "fmt.Println(1)", copied)
	assert.Contains(t, out, "Streaming off")

	require.Equal(t, 2, env.api.requestCount())
	assert.Equal(t, true, env.api.requests[0]["stream"])
	assert.Equal(t, false, env.api.requests[1]["stream"])
}

func TestChat_HistoryDisabled(t *testing.T) {
	env := newTestEnv(t, "ok")

	_, errOut, err := env.run(t, "/history\n/save\n", "chat", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, errOut, "History is not enabled")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_SetGetAndPath(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, env.cfgPath+"\n", out)

	_, _, err = env.run(t, "", "config", "set", "ui.code_style", "dracula")
	require.NoError(t, err)
	out, _, err = env.run(t, "", "config", "get", "ui.code_style")
	require.NoError(t, err)
	assert.Equal(t, "dracula\n", out)

	_, _, err = env.run(t, "", "config", "set", "token_counter", "bogus")
	assert.Error(t, err)
	_, _, err = env.run(t, "", "config", "set", "no.such", "1")
	assert.Error(t, err)
}

func TestConfig_SetDoesNotPersistOverrides(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(config.EnvAPIKey, "sk-from-env")

	_, _, err := env.run(t, "", "--model", "deepseek-reasoner", "config", "set", "streaming", "false")
	require.NoError(t, err)

	cfg, err := config.ReadFile(env.cfgPath)
	require.NoError(t, err)
	assert.False(t, cfg.Streaming)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Equal(t, "sk-test-1", cfg.ActiveModel().APIKey)
}

func TestConfig_ShowRedactsKeys(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "deepseek-chat")
	assert.NotContains(t, out, "sk-test-1")
}

func TestConfig_ExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "config", "export", "--passphrase", "hunter2")
	require.NoError(t, err)
	encoded := strings.TrimSpace(out)
	assert.True(t, config.IsSealed(encoded))

	other := newTestEnv(t)
	_, _, err = other.run(t, "", "config", "set", "system_prompt", "changed")
	require.NoError(t, err)

	_, _, err = other.run(t, "", "config", "import", "--passphrase", "wrong", encoded)
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "shared.txt")
	require.NoError(t, os.WriteFile(file, []byte(encoded+"\n"), 0600))
	_, _, err = other.run(t, "", "config", "import", "--passphrase", "hunter2", "@"+file)
	require.NoError(t, err)

	cfg, err := config.ReadFile(other.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, config.Default().SystemPrompt, cfg.SystemPrompt)
	assert.Equal(t, "sk-test-1", cfg.ActiveModel().APIKey)
}

// =============================================================================
// PING / VERSION
// =============================================================================

func TestPing_AllModels(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "ping", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "deepseek-chat")
	assert.Contains(t, out, "deepseek-reasoner")
	assert.Contains(t, out, "ms")
}

func TestPing_Unreachable(t *testing.T) {
	env := newTestEnv(t)
	env.server.Close()

	out, _, err := env.run(t, "", "ping")
	require.Error(t, err)
	assert.Contains(t, out, "N/A")
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "emochat "+Version)
}

// =============================================================================
// HELPERS
// =============================================================================

func TestReadImport(t *testing.T) {
	a := newApp()
	a.in = strings.NewReader("  from stdin\n")

	got, err := a.readImport("-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = a.readImport(" inline ")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	_, err = a.readImport("@/does/not/exist")
	assert.Error(t, err)
}

func TestPrinter_PlainRefencesOpenBlock(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, nil, false, 80)
	first := 0
	p.onFirst = func() { first++ }

	sp := render.NewSplitter(p)
	sp.Feed("a\n```sh\nls")
	sp.Finish()
	p.Flush()
	p.EndLine()

	assert.Equal(t, "a\n```sh\nls```\n", buf.String())
	assert.Equal(t, 1, first)
}
