package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/api"
	"github.com/imagicbell/ublockly-sub001/internal/app"
	"github.com/imagicbell/ublockly-sub001/internal/config"
	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
	"github.com/imagicbell/ublockly-sub001/internal/terminal"
)

const appName = "ublockly"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  %[1]s [--config file] gen [-target t] [-write] <workspace|file.xml>   Print or write generated code.
  %[1]s [--config file] run [-mode m] [-timeout d] <workspace|file.xml> Run a program in the interpreter.
  %[1]s [--config file] repl <workspace|file.xml>                      Step through a program.
  %[1]s [--config file] exec [-lua path] <workspace|file.xml>            Run the generated Lua with a Lua binary.
  %[1]s [--config file] mcp [-yes]                                      Serve MCP tools over stdio.
  %[1]s [--config file] serve [-addr host:port] [-v]                    Serve the HTTP API.

`, appName)
}

func main() {
	global := flag.NewFlagSet(appName, flag.ContinueOnError)
	configPath := global.String("config", "", "YAML config file (default $UBLOCKLY_CONFIG)")
	global.Usage = usage
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := global.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch args[0] {
	case "gen":
		code = cmdGen(ctx, cfg, args[1:])
	case "run":
		code = cmdRun(ctx, cfg, args[1:])
	case "repl":
		code = cmdRepl(ctx, cfg, args[1:])
	case "exec":
		code = cmdExec(ctx, cfg, args[1:])
	case "mcp":
		code = cmdMCP(ctx, cfg, args[1:])
	case "serve":
		code = cmdServe(ctx, cfg, args[1:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, args[0])
		usage()
		code = 2
	}
	stop()
	os.Exit(code)
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
	return 1
}

// openApp starts the shared services for a one-shot command.
func openApp(ctx context.Context, cfg config.Config, emitter service.EventEmitter) (*app.App, func(), error) {
	a, err := app.New(ctx, cfg, emitter)
	if err != nil {
		return nil, nil, err
	}
	return a, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Shutdown(shutdownCtx)
	}, nil
}

// resolveWorkspace accepts either a stored workspace (id or name) or a path
// to a workspace XML file. A file is imported into the workspace named after
// it, creating that workspace the first time.
func resolveWorkspace(ctx context.Context, a *app.App, arg string) (string, error) {
	info, statErr := os.Stat(arg)
	if statErr != nil || info.IsDir() {
		rec, err := a.Workspaces.Resolve(arg)
		if err != nil {
			return "", fmt.Errorf("workspace %q: %w", arg, err)
		}
		return rec.ID, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	rec, err := a.Workspaces.Resolve(name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec, err = a.Workspaces.Create(ctx, service.CreateWorkspaceInput{Name: name, XML: string(data)})
		if err != nil {
			return "", err
		}
		return rec.ID, nil
	case err != nil:
		return "", err
	}
	if _, err := a.Workspaces.ImportXML(ctx, rec.ID, string(data)); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// -----------------------------------------------------------------------------
// gen
// -----------------------------------------------------------------------------

func cmdGen(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	target := fs.String("target", "", "code target (csharp, lua); defaults to the workspace's")
	write := fs.Bool("write", false, "write the code under the output directory instead of printing it")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s gen [-target t] [-write] <workspace|file.xml>\n", appName)
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
	if *write {
		out, err := a.Codegen.WriteFile(ref, *target)
		if err != nil {
			return fail(err)
		}
		fmt.Println(out.Path)
		return 0
	}
	out, err := a.Codegen.Generate(ref, *target)
	if err != nil {
		return fail(err)
	}
	fmt.Print(out.Code)
	return 0
}

// -----------------------------------------------------------------------------
// run
// -----------------------------------------------------------------------------

func cmdRun(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	mode := fs.String("mode", "sync", "sync or step")
	timeout := fs.Duration("timeout", cfg.RunTimeout, "stop the program after this long (0 = never)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s run [-mode m] [-timeout d] <workspace|file.xml>\n", appName)
		return 2
	}
	m, ok := interp.ParseMode(*mode)
	if !ok {
		return fail(fmt.Errorf("unknown run mode %q", *mode))
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
	opts.Mode = m
	opts.Timeout = *timeout
	opts.Output = os.Stdout
	if m == interp.ModeStep {
		return replLoop(ctx, a, ref, opts)
	}

	if _, err := a.Runs.Start(ctx, ref, opts); err != nil {
		return fail(err)
	}
	info, err := a.Runs.Wait(ctx, ref)
	if err != nil {
		a.Runs.Stop(ref)
		return fail(err)
	}
	if info.Error != "" {
		return fail(errors.New(info.Error))
	}
	if info.Status != interp.StatusFinished.String() {
		fmt.Fprintf(os.Stderr, "%s: program %s\n", appName, info.Status)
		return 1
	}
	return 0
}

// -----------------------------------------------------------------------------
// exec
// -----------------------------------------------------------------------------

func cmdExec(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	lua := fs.String("lua", cfg.LuaBinary, "Lua interpreter")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s exec [-lua path] <workspace|file.xml>\n", appName)
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
	out, err := a.Codegen.Generate(ref, "lua")
	if err != nil {
		return fail(err)
	}
	exit, err := terminal.RunScript(ctx, *lua, out.Code, ".lua", os.Stdout)
	if err != nil {
		return fail(err)
	}
	return exit
}

// -----------------------------------------------------------------------------
// mcp
// -----------------------------------------------------------------------------

func cmdMCP(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "apply destructive tools without waiting for approval")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	// stdout belongs to the protocol
	log.SetOutput(os.Stderr)
	if err := app.ServeMCP(ctx, cfg, *yes); err != nil {
		return fail(err)
	}
	return 0
}

// -----------------------------------------------------------------------------
// serve
// -----------------------------------------------------------------------------

func cmdServe(ctx context.Context, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	verbose := fs.Bool("v", false, "log every request")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, closeApp, err := openApp(ctx, cfg, service.LogEmitter{})
	if err != nil {
		return fail(err)
	}
	defer closeApp()
	a.StartWatchers(ctx, true)

	srv := api.NewServer(api.Deps{
		Workspaces:   a.Workspaces,
		Codegen:      a.Codegen,
		Runs:         a.Runs,
		Schedules:    a.Schedules,
		Repositories: a.Repositories,
		Approvals:    a.Approvals,
	})
	srv.Verbose = *verbose
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		return fail(err)
	}
	return 0
}
