package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/dotpersona/pkg/agent"
	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

const (
	agentCommand = "/agent "
	stateCommand = "/state"
)

// chatSession is one operator-driven conversation on a local engine.
type chatSession struct {
	loop *agent.AgentLoop
	key  string
	out  io.Writer
}

func cliSessionKey(name string) string {
	return agent.SessionIdentity{
		Channel:        "cli",
		ConversationID: name,
		ActorID:        "operator",
	}.SessionKey()
}

// handleLine runs one operator line and reports whether the REPL should
// stop.
func (c *chatSession) handleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch {
	case input == "":
		return false
	case input == "exit" || input == "quit":
		fmt.Fprintln(c.out, "Goodbye!")
		return true
	case input == stateCommand:
		c.printState()
		return false
	case strings.HasPrefix(input, agentCommand):
		reply := strings.TrimSpace(strings.TrimPrefix(input, agentCommand))
		if err := c.loop.RecordDirectReply(c.key, reply); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		return false
	}

	res, err := c.loop.ProcessDirect(ctx, c.key, input)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return false
	}
	writeTurn(c.out, res)
	return false
}

func (c *chatSession) printState() {
	sess, err := c.loop.Sessions().Get(c.key)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	data, err := json.MarshalIndent(sess.State(), "", "  ")
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, string(data))
}

func writeTurn(w io.Writer, res agent.TurnResult) {
	d := res.Decision
	fmt.Fprintf(w, "  path: %s (%s)  mood: %s  stage: %s\n", res.EffectivePath, res.Method, d.Mood, d.Stage)
	if res.EngagementReady {
		fmt.Fprintf(w, "  engagement: %.2f %s", res.Metrics.Score, res.Metrics.Trend)
		if res.Loop.Detected {
			fmt.Fprintf(w, "  loop: %s (%.2f)", res.Loop.Type, res.Loop.Severity)
		} else {
			fmt.Fprint(w, "  loop: none")
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "  engagement: warming up")
	}
	for _, a := range res.Measured {
		outcome := "failed"
		if a.Success {
			outcome = "succeeded"
		}
		fmt.Fprintf(w, "  re-engagement %s %s\n", a.TopicID, outcome)
	}
	if res.Safety.Flagged() {
		fmt.Fprintf(w, "  safety: %s %.2f\n", res.Safety.Recommendation, res.Safety.Score)
	}
	if inj := res.Injection; inj != nil {
		fmt.Fprintf(w, "  inject [%s/%s]: %s\n", inj.Topic.ID, inj.Decision.Strategy, inj.Message)
	}
}

// writeCheckIn prints a silence check-in for this chat's session. The
// operator answers it with /agent like any other persona line.
func (c *chatSession) writeCheckIn(ci agent.GhostCheckIn) {
	if ci.SessionKey != c.key {
		return
	}
	fmt.Fprintf(c.out, "\n  check-in due: %s #%d after %s of silence\n", ci.Kind, ci.Level, ci.Silence.Round(time.Second))
}

func runChat(ctx context.Context, e *engine, sessionName string) error {
	key := cliSessionKey(sessionName)
	if _, err := e.manager.OpenKey(ctx, key); err != nil {
		return err
	}

	c := &chatSession{loop: e.loop, key: key, out: os.Stdout}

	maintCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := e.runMaintenance(maintCtx, c.writeCheckIn); err != nil {
			logger.WarnCF("cli", "Session maintenance stopped", map[string]any{"error": err.Error()})
		}
	}()

	watcher, err := e.watchCatalog(ctx)
	if err != nil {
		logger.WarnCF("cli", "Catalog watch disabled", map[string]any{"error": err.Error()})
	} else if watcher != nil {
		defer watcher.Close()
	}

	fmt.Printf("%s interactive mode, session %s (Ctrl+C to exit)\n", appName, sessionName)
	fmt.Printf("Type %s<text> to record the persona's reply, %s to dump tracker state.\n\n", agentCommand, stateCommand)
	interactiveMode(ctx, c)
	return nil
}

func interactiveMode(ctx context.Context, c *chatSession) {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".dotpersona_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, c, os.Stdin)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if c.handleLine(ctx, line) {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, c *chatSession, in io.Reader) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(c.out, "%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if strings.TrimSpace(line) != "" {
					c.handleLine(ctx, line)
				}
				fmt.Fprintln(c.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(c.out, "Error reading input: %v\n", err)
			return
		}
		if c.handleLine(ctx, line) {
			return
		}
	}
}
