package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"minerva/internal/bootstrap"
	"minerva/internal/services/analysis"
)

func main() {
	container := bootstrap.NewContainer()
	container.MustInit()
	defer container.Shutdown()

	// Ops server (probes + metrics) runs alongside the console
	if container.Config.HTTP.MetricsEnabled {
		if err := container.Start(); err != nil {
			container.Log.Fatalf("failed to start: %v", err)
		}
	}

	runConsole(container)
}

// runConsole drives the interactive analysis session. A first Ctrl-C cancels
// the turn in flight; a Ctrl-C at the prompt exits.
func runConsole(c *bootstrap.Container) {
	svc := c.Application.Analysis

	session, err := svc.StartSession(c.Context)
	if err != nil {
		c.Log.Fatalf("failed to start session: %v", err)
	}
	sessionID := session.ID

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Printf("%s %s: ask about stocks in plain language.\n", c.Config.App.Name, c.Config.App.Version)
	fmt.Printf("Chat: %s (%s) · Data: %s\n",
		c.Business.DefaultProvider,
		c.Business.DefaultModel,
		strings.Join(c.Adapters.Gateway.Providers(), " → "),
	)
	fmt.Println(`Type "help" for commands.`)

	lines := readLines(os.Stdin)

	for {
		fmt.Print("> ")

		select {
		case <-c.Context.Done():
			fmt.Println()
			return

		case <-sigCh:
			fmt.Println("\nBye.")
			return

		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				return
			}

			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}

			switch strings.ToLower(input) {
			case "help":
				printHelp()
			case "status":
				printStatus(c.Context, svc)
			case "test":
				printConnectivity(c.Context, svc)
			case "history":
				printHistory(c.Context, svc, sessionID)
			case "clear":
				if newID, err := resetSession(c.Context, svc, sessionID); err != nil {
					fmt.Printf("Could not reset session: %v\n", err)
				} else {
					sessionID = newID
					fmt.Println("Session cleared.")
				}
			case "quit", "exit":
				fmt.Println("Bye.")
				return
			default:
				runTurn(c.Context, svc, sessionID, input, sigCh)
			}
		}
	}
}

// readLines pumps stdin lines into a channel so the prompt loop can also
// watch for signals and shutdown
func readLines(f *os.File) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// runTurn submits one question and renders the response. SIGINT during the
// turn cancels it without leaving the console.
func runTurn(parent context.Context, svc *analysis.Service, sessionID uuid.UUID, text string, sigCh chan os.Signal) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	watcherDone := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nCancelling...")
			cancel()
		case <-watcherDone:
		}
	}()

	start := time.Now()
	resp, err := svc.SubmitQuery(ctx, sessionID, text)
	close(watcherDone)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Turn cancelled.")
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println()
	fmt.Println(resp.Text)
	for _, w := range resp.Warnings {
		fmt.Printf("⚠ %s\n", w)
	}

	footer := strings.Join(resp.ContributingWorkers, " + ")
	if resp.Escalated {
		footer += ", escalated"
	}
	fmt.Printf("(%s · %s)\n", footer, time.Since(start).Round(100*time.Millisecond))
}

func printHelp() {
	fmt.Println(`Commands:
  help      show this help
  status    providers, models, sessions, uptime
  test      probe market data and chat providers
  history   show this session's turns
  clear     start a fresh session
  quit      exit

Anything else is treated as a question, e.g.:
  What is the price of AAPL?
  Compare MSFT and GOOGL
  Should I buy Tesla?`)
}

func printStatus(ctx context.Context, svc *analysis.Service) {
	statusCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	status, err := svc.Status(statusCtx)
	if err != nil {
		fmt.Printf("Status unavailable: %v\n", err)
		return
	}

	fmt.Printf("%s %s · up %s\n", status.Service, status.Version, status.Uptime)
	fmt.Printf("Data providers: %s\n", strings.Join(status.DataProviders, " → "))
	for provider, models := range status.ChatModels {
		shown := models
		if len(shown) > 5 {
			shown = shown[:5]
		}
		fmt.Printf("Chat %s: %s", provider, strings.Join(shown, ", "))
		if len(models) > len(shown) {
			fmt.Printf(" (+%d more)", len(models)-len(shown))
		}
		fmt.Println()
	}
	fmt.Printf("Active sessions: %d · cache enabled: %v\n", status.ActiveSessions, status.CacheEnabled)

	for _, tier := range svc.Capabilities() {
		fmt.Printf("Tier %s: %s\n", tier.Name, strings.Join(tier.Tools, ", "))
	}
}

func printConnectivity(ctx context.Context, svc *analysis.Service) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fmt.Println("Probing dependencies...")
	for _, res := range svc.TestConnectivity(probeCtx) {
		mark := "✓"
		if !res.OK {
			mark = "✗"
		}
		fmt.Printf("%s %-12s %s (%s)\n", mark, res.Target, res.Detail, res.Elapsed)
	}
}

func printHistory(ctx context.Context, svc *analysis.Service, sessionID uuid.UUID) {
	turns, err := svc.History(ctx, sessionID)
	if err != nil {
		fmt.Printf("History unavailable: %v\n", err)
		return
	}
	if len(turns) == 0 {
		fmt.Println("No turns yet.")
		return
	}

	fmt.Printf("Session %s · %d turn(s)\n", shortID(sessionID), len(turns))
	for i, turn := range turns {
		fmt.Printf("%d. [%s] %s\n", i+1, humanize.Time(turn.At), turn.Query.Text)
		fmt.Printf("   %s\n", firstLine(turn.Response.Text, 120))
	}
}

func resetSession(ctx context.Context, svc *analysis.Service, oldID uuid.UUID) (uuid.UUID, error) {
	if err := svc.EndSession(ctx, oldID); err != nil {
		return uuid.Nil, err
	}
	session, err := svc.StartSession(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return session.ID, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// firstLine truncates a response to a single display line
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
