package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/dotpersona/pkg/agent"
	"github.com/dotsetgreg/dotpersona/pkg/config"
	"github.com/dotsetgreg/dotpersona/pkg/engagement"
	"github.com/dotsetgreg/dotpersona/pkg/reengage"
	"github.com/dotsetgreg/dotpersona/pkg/routing"
	"github.com/dotsetgreg/dotpersona/pkg/safety"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand(false)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeTestConfig saves a config rooted in a temp dir and returns its path.
func writeTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Reengage.StatsPath = filepath.Join(dir, "data", "topic_stats.db")
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(dir, "config.json")
	if err := config.SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	return path
}

func TestCLIHelp(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want []string
	}{
		{"root", []string{"--help"}, []string{"chat", "serve", "topics", "status", "version", "--config"}},
		{"chat", []string{"chat", "--help"}, []string{"--session", "--seed", "--debug"}},
		{"topics", []string{"topics", "--help"}, []string{"--format", "--catalog"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runRootCommandForTest(tc.args...)
			if err != nil {
				t.Fatalf("execute %v: %v\nOutput:\n%s", tc.args, err, out)
			}
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestCLIRootRequiresSubcommand(t *testing.T) {
	_, err := runRootCommandForTest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcommand is required")
}

func TestCLIVersion(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		out, err := runRootCommandForTest(args...)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, appName+" "+formatVersion()), "got %q", out)
		assert.Contains(t, out, "Go: ")
	}
}

func TestCLITopicsYAMLRoundTrips(t *testing.T) {
	out, err := runRootCommandForTest("topics", "--format", "yaml", "--config", writeTestConfig(t, nil))
	require.NoError(t, err)

	cat, err := reengage.ParseCatalog([]byte(out))
	require.NoError(t, err)
	if diff := cmp.Diff(reengage.DefaultCatalog(), cat); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestCLITopicsTable(t *testing.T) {
	out, err := runRootCommandForTest("topics", "--config", writeTestConfig(t, nil))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(reengage.DefaultCatalog())+1)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	for _, topic := range reengage.DefaultCatalog() {
		assert.Contains(t, out, topic.ID)
	}
}

func TestCLITopicsCustomCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	doc := `topics:
  - id: weekend
    category: casual
    entry_lines: ["what are you up to this weekend?"]
    preferred_paths: [PATH_A]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := runRootCommandForTest("topics", "--catalog", path)
	require.NoError(t, err)
	assert.Contains(t, out, "weekend")
	assert.NotContains(t, out, reengage.DefaultCatalog()[0].ID)

	_, err = runRootCommandForTest("topics", "--catalog", path, "--format", "xml")
	require.Error(t, err)
}

func TestCLIStatus(t *testing.T) {
	cases := []struct {
		name   string
		driver string
		want   string
	}{
		{"memory", config.StatsDriverMemory, "Stats store: memory"},
		{"sqlite", config.StatsDriverSQLite, "Stats store: sqlite"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTestConfig(t, func(c *config.Config) { c.Reengage.StatsDriver = tc.driver })
			out, err := runRootCommandForTest("status", "--config", path)
			require.NoError(t, err)
			assert.Contains(t, out, tc.want)
			assert.Contains(t, out, "Stats health: ✓ (0 topics")
			assert.Contains(t, out, "Catalog: built-in")
		})
	}
}

func TestSessionOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Routing.ClearWinnerMargin = 12
	cfg.Engagement.WarmupMessages = 3
	cfg.Reengage.RateLimitSeconds = 30
	cfg.Reengage.SuccessDelta = 0.2

	opts := sessionOptions(cfg, 9)
	assert.Equal(t, uint64(9), opts.Seed)
	assert.Equal(t, 12.0, opts.Routing.Margin)
	assert.Equal(t, cfg.OracleTimeout(), opts.Routing.OracleTimeout)
	assert.Equal(t, 3, opts.Engagement.WarmupMessages)
	assert.Equal(t, cfg.RateLimit(), opts.Reengage.RateLimit)
	assert.Equal(t, 0.2, opts.Reengage.SuccessDelta)
	assert.Equal(t, cfg.Ghost.MaxMessages, opts.Ghost.MaxMessages)
	assert.Equal(t, []time.Duration{time.Minute, 90 * time.Second, 2 * time.Minute}, opts.Ghost.Delays)
	assert.Equal(t, 30*time.Second, opts.Ghost.MinGap)
}

func TestNextCheck(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC)
	next, err := nextCheck("*/5 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), next)

	_, err = nextCheck("not a schedule", from)
	assert.Error(t, err)
}

func TestEngineMaintainReportsSilence(t *testing.T) {
	c, out, e := newTestChatEngine(t)
	ctx := context.Background()

	assert.Empty(t, e.maintain(time.Now().Add(5*time.Minute)), "no check-in before the first message")

	_, err := c.loop.ProcessDirect(ctx, c.key, "brb")
	require.NoError(t, err)
	due := e.maintain(time.Now().Add(61 * time.Second))
	require.Len(t, due, 1)
	assert.Equal(t, c.key, due[0].SessionKey)
	assert.Equal(t, reengage.GhostGentle, due[0].Kind)

	c.writeCheckIn(due[0])
	assert.Contains(t, out.String(), "check-in due: gentle #1 after")

	out.Reset()
	other := due[0]
	other.SessionKey = cliSessionKey("someone-else")
	c.writeCheckIn(other)
	assert.Empty(t, out.String())
}

func newTestChat(t *testing.T) (*chatSession, *bytes.Buffer) {
	t.Helper()
	c, out, _ := newTestChatEngine(t)
	return c, out
}

func newTestChatEngine(t *testing.T) (*chatSession, *bytes.Buffer, *engine) {
	t.Helper()
	cfg, err := config.LoadConfig(writeTestConfig(t, nil))
	require.NoError(t, err)
	e, err := newEngine(cfg, 7)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	key := cliSessionKey("test")
	_, err = e.manager.OpenKey(context.Background(), key)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &chatSession{loop: e.loop, key: key, out: out}, out, e
}

func TestChatHandleLine(t *testing.T) {
	c, out := newTestChat(t)
	ctx := context.Background()

	assert.False(t, c.handleLine(ctx, "   "))
	assert.Empty(t, out.String())

	assert.False(t, c.handleLine(ctx, "hey, how was your day?"))
	assert.Contains(t, out.String(), "path: PATH_")
	assert.Contains(t, out.String(), "engagement: warming up")

	out.Reset()
	assert.False(t, c.handleLine(ctx, "/agent pretty good, you?"))
	assert.Empty(t, out.String())

	out.Reset()
	assert.False(t, c.handleLine(ctx, stateCommand))
	assert.Contains(t, out.String(), `"messages": 2`)

	out.Reset()
	assert.True(t, c.handleLine(ctx, "quit"))
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestSimpleInteractiveMode(t *testing.T) {
	c, out := newTestChat(t)
	in := strings.NewReader("hello there\n/agent hi!\nexit\nnever read\n")

	simpleInteractiveMode(context.Background(), c, in)

	sess, err := c.loop.Sessions().Get(c.key)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.State().Messages)
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestWriteTurn(t *testing.T) {
	res := agent.TurnResult{
		Decision:        routing.Decision{Mood: routing.Mood("neutral"), Stage: routing.StageEarly},
		EffectivePath:   routing.IgnoreSelfFocus,
		Method:          routing.MethodForced,
		EngagementReady: true,
		Metrics:         engagement.Metrics{Score: 0.31, Trend: engagement.Falling},
		Loop:            engagement.LoopAnalysis{Detected: true, Type: engagement.LoopDeadEnd, Severity: 0.8},
		Safety:          safety.Result{Score: 0.4, Recommendation: safety.RecommendWarning},
		Measured:        []reengage.Attempt{{TopicID: "weekend", Success: true}},
		Injection: &reengage.Injection{
			Message:  "ok random thought",
			Topic:    reengage.Topic{ID: "shower_thoughts"},
			Decision: reengage.Decision{Strategy: reengage.StrategyRandomInterruption},
		},
	}

	var buf bytes.Buffer
	writeTurn(&buf, res)
	got := buf.String()
	for _, want := range []string{
		"path: PATH_E (forced)",
		"stage: early",
		"engagement: 0.31 falling",
		"loop: dead_end (0.80)",
		"re-engagement weekend succeeded",
		"safety: WARNING 0.40",
		"inject [shower_thoughts/random_interruption]: ok random thought",
	} {
		assert.Contains(t, got, want)
	}
}

func TestDocsGenerate(t *testing.T) {
	dir := t.TempDir()
	rootFactory := func() *cobra.Command { return buildRootCommand(false) }

	require.Error(t, generateDocumentation(rootFactory, dir, true))
	require.NoError(t, generateDocumentation(rootFactory, dir, false))

	for _, rel := range []string{"config.md", "paths.md", "topics.md", filepath.Join("cli", "dotpersona.md")} {
		_, err := os.Stat(filepath.Join(dir, "reference", rel))
		assert.NoError(t, err, rel)
	}
	configRef, err := os.ReadFile(filepath.Join(dir, "reference", "config.md"))
	require.NoError(t, err)
	assert.Contains(t, string(configRef), "DOTPERSONA_REENGAGE_STATS_DRIVER")
	assert.Contains(t, string(configRef), "`reengage.success_delta`")
}

func TestEngineWatchCatalog(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "topics.yaml")
	data, err := reengage.MarshalCatalog(reengage.DefaultCatalog())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(catalogPath, data, 0o644))

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		watches bool
	}{
		{"no catalog", nil, false},
		{"watch disabled", func(c *config.Config) { c.Reengage.CatalogPath = catalogPath }, false},
		{"watch enabled", func(c *config.Config) {
			c.Reengage.CatalogPath = catalogPath
			c.Reengage.WatchCatalog = true
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.LoadConfig(writeTestConfig(t, tc.mutate))
			require.NoError(t, err)
			e, err := newEngine(cfg, 1)
			require.NoError(t, err)
			defer e.Close()

			w, err := e.watchCatalog(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.watches, w != nil)
			if w != nil {
				require.NoError(t, w.Close())
			}
		})
	}
}

func TestServeJSONLines(t *testing.T) {
	_, _, e := newTestChatEngine(t)
	in := strings.NewReader(strings.Join([]string{
		`{"channel":"web","chat_id":"c1","sender_id":"u1","content":"hey"}`,
		`{"channel":"web","chat_id":"c1","sender_id":"u1","content":"hi babe","kind":"agent"}`,
		`not json`,
		``,
		`{"channel":"web","chat_id":"c2","sender_id":"u2","content":"what's up?"}`,
		`{"channel":"web","chat_id":"c1","sender_id":"u1","content":"long day"}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, serveJSONLines(context.Background(), e, in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3, "one decision per user turn")
	perSession := map[string]int{}
	for _, line := range lines {
		var msg struct {
			Kind       string `json:"kind"`
			SessionKey string `json:"session_key"`
			TurnID     string `json:"turn_id"`
			Result     struct {
				TurnID string `json:"turn_id"`
			} `json:"result"`
			Error string `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &msg), line)
		assert.Equal(t, "turn", msg.Kind)
		assert.Empty(t, msg.Error)
		assert.Equal(t, msg.TurnID, msg.Result.TurnID)
		perSession[msg.SessionKey]++
	}
	assert.Len(t, perSession, 2)

	c1, err := agent.ResolveSessionKey("", "web", "c1", "u1")
	require.NoError(t, err)
	sess, err := e.manager.Get(c1)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.State().Messages, "two user turns and the recorded reply")
}
