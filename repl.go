package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/imagicbell/ublockly-sub001/internal/app"
	"github.com/imagicbell/ublockly-sub001/internal/config"
	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

const (
	historyFile = ".ublockly_history"
	replPrompt  = "(step) "
	replHelp    = `Commands:
  step, s [n]   Execute the next statement (n times)
  pause         Pause a running program
  resume        Continue running without stepping
  stop          Stop the program
  globals, g    Show global variables
  status        Show the run status
  quit, q       Exit
`
)

var replCommands = []string{"step", "pause", "resume", "stop", "globals", "status", "help", "quit"}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s repl <workspace|file.xml>\n", appName)
		return 2
	}

	a, closeApp, err := openApp(ctx, cfg, nil)
	if err != nil {
		return fail(err)
	}
	defer closeApp()

	ref, err := resolveWorkspace(ctx, a, fs.Arg(0))
	if err != nil {
		return fail(err)
	}
	opts := a.Runs.Defaults
	opts.Mode = interp.ModeStep
	opts.Output = os.Stdout
	return replLoop(ctx, a, ref, opts)
}

// replLoop starts a step-mode run of ref and drives it from the prompt.
func replLoop(ctx context.Context, a *app.App, ref string, opts service.RunOptions) int {
	info, err := a.Runs.Start(ctx, ref, opts)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Stepping %s. Type help for commands, Ctrl+D exits.\n", info.WorkspaceID)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	})
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for ctx.Err() == nil {
		line, err := ln.Prompt(replPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			break
		}
		if err != nil {
			return fail(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			// repeat the last step like a debugger
			line = "step"
		} else {
			ln.AppendHistory(line)
		}

		quit, err := handleReplCommand(a.Runs, ref, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if quit {
			break
		}
	}

	a.Runs.Stop(ref)
	info, err = a.Runs.Info(ref)
	if err == nil && info.Error != "" {
		return 1
	}
	return 0
}

func handleReplCommand(runs *service.RunService, ref, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	var info *service.RunInfo
	switch strings.ToLower(fields[0]) {
	case "step", "s":
		n := 1
		if len(fields) > 1 {
			if _, err := fmt.Sscanf(fields[1], "%d", &n); err != nil || n < 1 {
				return false, fmt.Errorf("bad step count %q", fields[1])
			}
		}
		for i := 0; i < n; i++ {
			info, err = runs.Step(ref)
			if err != nil || !isActive(info) {
				break
			}
		}
	case "pause":
		info, err = runs.Pause(ref)
	case "resume", "continue", "c":
		info, err = runs.Resume(ref)
	case "stop":
		info, err = runs.Stop(ref)
	case "globals", "g":
		info, err = runs.Info(ref)
		if err == nil {
			printGlobals(info.Globals)
		}
		return false, err
	case "status":
		info, err = runs.Info(ref)
	case "help", "h", "?":
		fmt.Print(replHelp)
		return false, nil
	case "quit", "q", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	if err != nil {
		return false, err
	}
	if info.Error != "" {
		fmt.Fprintf(os.Stderr, "error: %s\n", info.Error)
	}
	if !isActive(info) {
		fmt.Printf("program %s\n", info.Status)
	}
	return false, nil
}

func isActive(info *service.RunInfo) bool {
	return info.Status == interp.StatusRunning.String() || info.Status == interp.StatusPaused.String()
}

func printGlobals(globals map[string]string) {
	if len(globals) == 0 {
		fmt.Println("(no globals)")
		return
	}
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s = %s\n", name, globals[name])
	}
}
