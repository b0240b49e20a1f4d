// Package main is the entry point for the ghostwriter composer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/dshills/ghostwriter/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type cliOptions struct {
	app.Options
	print bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: ghostwriter needs an interactive terminal")
		return 1
	}

	application, err := app.New(opts.Options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := application.Run(ctx)
	value := application.Value()
	if err := application.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	if opts.print {
		fmt.Print(value)
	}
	return 0
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Provider, "provider", "", "Completion provider (openai, anthropic, gemini, http, lua)")
	flag.StringVar(&opts.Provider, "p", "", "Completion provider (shorthand)")
	flag.StringVar(&opts.Model, "model", "", "Model name")
	flag.StringVar(&opts.Model, "m", "", "Model name (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Watch, "watch", true, "Reload the configuration file when it changes")
	flag.BoolVar(&opts.print, "print", false, "Print the final text to stdout on exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ghostwriter - inline completion composer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ghostwriter [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ghostwriter                   Compose with the offline lua provider\n")
		fmt.Fprintf(os.Stderr, "  ghostwriter notes.txt         Edit notes.txt, saved on quit\n")
		fmt.Fprintf(os.Stderr, "  ghostwriter -p openai -print  Compose with OpenAI and print the result\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("ghostwriter %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	switch flag.NArg() {
	case 0:
	case 1:
		opts.InputFile = flag.Arg(0)
		opts.OutputFile = flag.Arg(0)
	default:
		fmt.Fprintln(os.Stderr, "Error: at most one file may be given")
		os.Exit(1)
	}

	return opts
}
