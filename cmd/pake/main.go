// Command pake builds targets declared in a Pakefile.yaml, rebuilding only
// what its recorded results say is stale.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/pakebuild/pake"
	"github.com/pakebuild/pake/internal/config"
	"github.com/pakebuild/pake/internal/journal"
	"github.com/pakebuild/pake/internal/log"
	"github.com/pakebuild/pake/internal/pakefile"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pake", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	var (
		scriptPath  string
		configPath  string
		stateFile   string
		rebuild     bool
		rebuildAll  bool
		graph       bool
		history     int
		verbose     bool
		quiet       bool
		colorOn     bool
		colorOff    bool
		showVersion bool
	)
	fs.StringVar(&scriptPath, "f", "", "path to the build script (default: Pakefile.yaml or Pakefile)")
	fs.StringVar(&scriptPath, "pakefile", "", "path to the build script")
	fs.StringVar(&configPath, "config", "", "path to the engine config file (default: .pake.yaml in the root)")
	fs.StringVar(&stateFile, "statefile", "", "override the state file path")
	fs.BoolVar(&rebuild, "rebuild", false, "force-rebuild the listed targets")
	fs.BoolVar(&rebuildAll, "rebuild-all", false, "force-rebuild every target reached")
	fs.BoolVar(&graph, "graph", false, "print the dependency tree instead of building")
	fs.IntVar(&history, "history", 0, "show the N most recent runs and exit")
	fs.BoolVar(&verbose, "v", false, "verbose (debug) logging")
	fs.BoolVar(&quiet, "q", false, "log errors only")
	fs.BoolVar(&colorOn, "color", false, "force colored output")
	fs.BoolVar(&colorOff, "no-color", false, "disable colored output")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return pake.ExitUsage
	}
	if showVersion {
		fmt.Printf("pake version %s\n", version)
		return pake.ExitOK
	}

	if scriptPath == "" {
		located, err := pakefile.Locate(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "pake: %v\n", err)
			return pake.ExitUsage
		}
		scriptPath = located
	}
	root := filepath.Dir(scriptPath)

	if configPath == "" {
		configPath = filepath.Join(root, config.DefaultFileName)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pake: %v\n", err)
		return pake.ExitUsage
	}

	level := cfg.LogLevel
	if quiet {
		level = "ERROR"
	}
	if verbose {
		level = "DEBUG"
	}
	log.Setup(level)

	colored := useColor(cfg.Color, colorOn, colorOff)

	if history > 0 {
		return showHistory(cfg, root, history, colored)
	}

	if stateFile == "" {
		stateFile = cfg.StateFile
	}
	opts := []pake.Option{pake.WithStateFile(stateFile)}
	if cfg.JournalEnabled() {
		opts = append(opts, pake.WithJournal(cfg.Journal.Path))
	}
	switch {
	case rebuildAll:
		opts = append(opts, pake.WithRebuild(pake.RebuildAll))
	case rebuild:
		opts = append(opts, pake.WithRebuild(pake.RebuildListed))
	}

	engine := pake.New(root, opts...)
	script, err := pakefile.Load(scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pake: %v\n", err)
		return pake.ExitUsage
	}
	if err := pakefile.Apply(engine, script); err != nil {
		fmt.Fprintf(os.Stderr, "pake: %v\n", err)
		return registrationExit(err)
	}

	if graph {
		nodes, err := engine.DepTree(fs.Args())
		if err != nil {
			printError(colored, err)
			return registrationExit(err)
		}
		for _, n := range nodes {
			printTree(n, 0)
		}
		return pake.ExitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuilt, err := engine.Build(ctx, fs.Args())
	if err != nil {
		printError(colored, err)
		return pake.ExitCode(err)
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "pake: %d target(s) rebuilt\n", rebuilt)
	}
	return pake.ExitOK
}

// registrationExit maps rule loading failures to the usage category unless
// the error already carries a more specific code.
func registrationExit(err error) int {
	if code := pake.ExitCode(err); code != pake.ExitBuildFailed {
		return code
	}
	return pake.ExitUsage
}

func useColor(mode string, forceOn, forceOff bool) bool {
	switch {
	case forceOff:
		return false
	case forceOn:
		return true
	}
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	}
}

var (
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printError(colored bool, err error) {
	msg := "pake: " + err.Error()
	if colored {
		msg = errStyle.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
}

func printTree(n *pake.DepNode, depth int) {
	fmt.Printf("%s%s\n", strings.Repeat("  ", depth), n.Name)
	for _, d := range n.Deps {
		printTree(d, depth+1)
	}
}

func showHistory(cfg *config.Config, root string, limit int, colored bool) int {
	if !cfg.JournalEnabled() {
		fmt.Fprintln(os.Stderr, "pake: the run journal is disabled in the configuration")
		return pake.ExitUsage
	}
	path := cfg.Journal.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	ctx := context.Background()
	j, err := journal.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pake: %v\n", err)
		return pake.ExitBuildFailed
	}
	defer j.Close()

	runs, err := j.RecentRuns(ctx, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pake: %v\n", err)
		return pake.ExitBuildFailed
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return pake.ExitOK
	}

	for _, r := range runs {
		status := r.Status
		if colored {
			switch r.Status {
			case journal.StatusSucceeded:
				status = okStyle.Render(status)
			case journal.StatusFailed:
				status = errStyle.Render(status)
			case journal.StatusInterrupted:
				status = warnStyle.Render(status)
			}
		}
		line := fmt.Sprintf("%s  %-11s  rebuilt=%-3d  %s",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), status, r.Rebuilt,
			strings.Join(r.Targets, " "))
		if r.Error != "" {
			suffix := "  " + r.Error
			if colored {
				suffix = subtleStyle.Render(suffix)
			}
			line += suffix
		}
		fmt.Println(line)
	}
	return pake.ExitOK
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `pake - content-addressed build tool

Usage:
  pake [flags] [target ...]

Targets default to "default" when none are given. File targets are paths
relative to the build script's directory; virtual targets are plain names.

Flags:
`)
	fs.PrintDefaults()
}
