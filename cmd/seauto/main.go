// Package main runs browser stories with failure diagnostics: screenshots
// and page dumps for every distinct failure, and an optional debug pause
// before visible browsers close.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/entrhq/seauto/pkg/browser"
	"github.com/entrhq/seauto/pkg/config"
	"github.com/entrhq/seauto/pkg/failure"
	"github.com/entrhq/seauto/pkg/lifecycle"
	"github.com/entrhq/seauto/pkg/logging"
	"github.com/entrhq/seauto/pkg/prompt"
	"github.com/entrhq/seauto/pkg/runner"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	DryRun      bool
	Debug       bool
	Browser     string
	Output      string
	Filter      string
	SiteURL     string
	Concurrency int
	ShowVersion bool

	// set records which flags were given explicitly
	set map[string]bool
}

func main() {
	cli := parseFlags(os.Args[1:])

	if cli.ShowVersion {
		fmt.Printf("seauto v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down, closing browsers...")
		cancel()
	}()

	code, err := run(ctx, cli)
	cancel()
	if err != nil {
		log.Printf("Run failed: %v", err)
		os.Exit(2)
	}
	os.Exit(code)
}

// parseFlags parses command line flags
func parseFlags(args []string) *CLIConfig {
	cli := &CLIConfig{set: make(map[string]bool)}
	fs := flag.NewFlagSet("seauto", flag.ExitOnError)

	fs.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	fs.BoolVar(&cli.DryRun, "dry-run", false, "Walk the stories without starting browsers")
	fs.BoolVar(&cli.Debug, "debug", false, "Pause before closing each visible browser")
	fs.StringVar(&cli.Browser, "browser", "", "Browser kind: chrome, chrome-headless, firefox, firefox-headless, webkit, htmlunit, remote")
	fs.StringVar(&cli.Output, "output", "", "Output directory for screenshots and logs")
	fs.StringVar(&cli.Filter, "filter", "", "Glob matched against story names")
	fs.StringVar(&cli.SiteURL, "site", "", "Root URL of the site under test")
	fs.IntVar(&cli.Concurrency, "concurrency", 0, "Number of stories run at once")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "seauto - browser story runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: seauto [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run headless against the default site\n")
		fmt.Fprintf(os.Stderr, "  seauto -browser chrome-headless\n\n")
		fmt.Fprintf(os.Stderr, "  # Watch a failing story and keep the browser open\n")
		fmt.Fprintf(os.Stderr, "  seauto -browser chrome -debug -filter 'search*'\n\n")
	}

	_ = fs.Parse(args)
	fs.Visit(func(f *flag.Flag) {
		cli.set[f.Name] = true
	})
	return cli
}

// apply overrides cfg with the flags given on the command line
func (c *CLIConfig) apply(cfg *config.RunConfig) {
	if c.set["dry-run"] {
		cfg.DryRun = c.DryRun
	}
	if c.set["debug"] {
		cfg.DebugEnabled = c.Debug
	}
	if c.set["browser"] {
		cfg.BrowserName = c.Browser
	}
	if c.set["output"] {
		cfg.OutputDirectory = c.Output
	}
	if c.set["filter"] {
		cfg.StoryFilter = c.Filter
	}
	if c.set["site"] {
		cfg.SiteURL = c.SiteURL
	}
	if c.set["concurrency"] {
		cfg.Concurrency = c.Concurrency
	}
}

// run executes the stories and returns the process exit code
func run(ctx context.Context, cli *CLIConfig) (int, error) {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return 0, fmt.Errorf("failed to load configuration: %w", err)
	}
	cli.apply(&cfg)
	if cfg.SiteURL == "" {
		cfg.SiteURL = defaultSiteURL
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return 0, fmt.Errorf("invalid configuration: %w", validationErr)
	}

	if cfg.Logging.Console {
		logging.Configure(cfg.LogDirectory(), os.Stderr)
	} else {
		logging.Configure(cfg.LogDirectory(), nil)
	}

	logger, err := logging.NewLogger("seauto")
	if err != nil {
		return 0, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.Infof("Run %s, log file %s", logger.RunID(), logger.LogPath())

	pw := browser.NewPlaywrightLauncher(browser.PlaywrightOptions{
		InstallBrowsers: cfg.InstallBrowsers,
		RemoteURL:       cfg.RemoteURL,
	})
	defer func() {
		if closeErr := pw.Close(); closeErr != nil {
			logger.Warnf("Failed to stop playwright: %v", closeErr)
		}
	}()

	launchers := browser.Launchers{browser.HTMLUnit: &browser.TextLauncher{}}
	for _, kind := range browser.Kinds {
		if kind != browser.HTMLUnit {
			launchers[kind] = pw
		}
	}

	listener := lifecycle.NewListener(cfg, failure.NewRegistry(),
		lifecycle.WithLogger(logger.With("lifecycle")),
		lifecycle.WithAcknowledger(selectAcknowledger()),
	)

	r, err := runner.New(cfg, listener, launchers,
		runner.WithRasterizer(pw),
		runner.WithLogger(logger.With("runner")),
	)
	if err != nil {
		return 0, err
	}

	summary, err := r.Run(ctx, sampleStories())
	fmt.Fprintln(os.Stderr, summary)
	if err != nil {
		return 0, err
	}

	if summary.Failed() {
		return 1, nil
	}
	return 0, nil
}

// selectAcknowledger picks the debug prompt: full screen on a terminal, a
// line prompt when stdin is piped.
func selectAcknowledger() lifecycle.Acknowledger {
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()) {
		return prompt.NewTUI(os.Stdin, os.Stdout)
	}
	return prompt.NewConsole(os.Stdin, os.Stderr)
}
