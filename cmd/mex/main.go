// Command mex is the engine's CLI entry point (spec.md §6 "CLI"):
// tokenise, expand, and typeset a single source file, reporting any
// error with a source excerpt and caret.
//
// Grounded on aledsdavies-opal's cli/main.go (cobra root command wrapping
// a single RunE, flags bound to local vars, a translated exit code) for
// the command-line shape; the engine assembly itself (state.New, then
// control.InstallPrimitives, then mode.New wired to doc.Layout) has no
// teacher analogue since pongo2 has no standalone CLI.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/marnanel/mex/internal/box"
	"github.com/marnanel/mex/internal/control"
	"github.com/marnanel/mex/internal/expand"
	"github.com/marnanel/mex/internal/font/tfm"
	"github.com/marnanel/mex/internal/mexerr"
	"github.com/marnanel/mex/internal/mode"
	"github.com/marnanel/mex/internal/source"
	"github.com/marnanel/mex/internal/state"
)

var logger = loggo.GetLogger("mex.cmd")

func main() {
	os.Exit(run())
}

func run() int {
	var (
		verbosity       int
		logFile         string
		pythonTraceback bool
	)

	rootCmd := &cobra.Command{
		Use:   "mex <file>",
		Short: "Typeset a TeX-compatible source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if logFile != "" && verbosity == 0 {
				verbosity = 1
			}
			configureLogging(verbosity, logFile)
			return process(args[0])
		},
	}

	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase tracing intensity")
	rootCmd.Flags().StringVarP(&logFile, "logfile", "L", "", "write trace output to this file (implies -v)")
	rootCmd.Flags().BoolVar(&pythonTraceback, "python-traceback", false, "vestigial: emit an internal diagnostic traceback on failure")

	if err := rootCmd.Execute(); err != nil {
		reportError(err, pythonTraceback)
		return 255
	}
	return 0
}

func configureLogging(verbosity int, logFile string) {
	level := loggo.WARNING
	switch {
	case verbosity >= 2:
		level = loggo.TRACE
	case verbosity == 1:
		level = loggo.DEBUG
	}
	loggo.GetLogger("mex").SetLogLevel(level)

	if logFile == "" {
		return
	}
	f, err := os.Create(logFile)
	if err != nil {
		logger.Warningf("could not open logfile %s: %v", logFile, err)
		return
	}
	w := loggo.NewSimpleWriter(f, loggo.DefaultFormatter)
	if _, err := loggo.ReplaceDefaultWriter(w); err != nil {
		logger.Warningf("could not attach logfile writer: %v", err)
	}
}

// process reads filename, assembles a fresh engine, and runs it to
// completion.
func process(filename string) error {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return mexerr.IO(mexerr.Location{}, err, "reading %s", filename)
	}

	doc := state.New()
	control.InstallPrimitives(doc)

	handler := mode.New(doc)
	handler.MetricsFor = fontMetricsCache()
	handler.PageBuilder = func(b *box.Box) {
		logger.Debugf("page builder received a box: %dsp x %dsp", b.Width.Sp, b.Height.Sp)
	}
	doc.Layout = handler

	src := source.New(filename, string(contents))
	m := expand.New(src, doc.Catcode, doc)

	return control.RunDocument(m, handler)
}

// fontMetricsCache returns a font-name resolver that lazily loads a TFM
// file the first time a font is selected, per spec.md §5 "Fonts are
// opened once and held for the document's lifetime."
func fontMetricsCache() func(font string) box.FontMetrics {
	cache := map[string]box.FontMetrics{}
	return func(font string) box.FontMetrics {
		if font == "" {
			return nil
		}
		if m, ok := cache[font]; ok {
			return m
		}
		f, err := os.Open(font + ".tfm")
		if err != nil {
			logger.Warningf("could not open font metrics for %s: %v", font, err)
			cache[font] = nil
			return nil
		}
		defer f.Close()
		metrics, err := tfm.Parse(f)
		if err != nil {
			logger.Warningf("could not parse font metrics for %s: %v", font, err)
			cache[font] = nil
			return nil
		}
		cache[font] = metrics
		return metrics
	}
}

// reportError prints a mex error per spec.md §7's display format:
// "<file>:<line>:<col>: <message>\n<source excerpt>\n<caret under the
// column>". pythonTraceback additionally dumps the wrapped cause chain,
// matching the CLI's vestigial --python-traceback flag.
func reportError(err error, pythonTraceback bool) {
	me, ok := asMexError(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "mex: %v\n", err)
		return
	}

	fmt.Fprintln(os.Stderr, me.Error())
	if excerpt, ok := sourceExcerpt(me.Loc); ok {
		fmt.Fprintln(os.Stderr, excerpt)
		fmt.Fprintln(os.Stderr, strings.Repeat(" ", max(0, me.Loc.Column-1))+"^")
	}
	if pythonTraceback {
		fmt.Fprintf(os.Stderr, "--- internal traceback ---\n%+v\n", err)
	}
}

func asMexError(err error) (*mexerr.Error, bool) {
	me, ok := err.(*mexerr.Error)
	return me, ok
}

func sourceExcerpt(loc mexerr.Location) (string, bool) {
	if loc.Filename == "" || loc.Line <= 0 {
		return "", false
	}
	contents, err := os.ReadFile(loc.Filename)
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(contents), "\n")
	if loc.Line > len(lines) {
		return "", false
	}
	return lines[loc.Line-1], true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
