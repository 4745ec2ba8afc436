package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/app/run"
	"github.com/sagshome/ImageClean-sub000/internal/config"
	"github.com/sagshome/ImageClean-sub000/internal/convert"
	"github.com/sagshome/ImageClean-sub000/internal/domain"
	"github.com/sagshome/ImageClean-sub000/internal/infra/exifx"
	"github.com/sagshome/ImageClean-sub000/internal/infra/phash"
)

// =============================================================================
// Flags
// =============================================================================

// policyFlags are the boolean switches that override the config file. Only
// flags given explicitly on the command line take effect.
var policyFlags = []struct {
	name  string
	key   string
	def   bool
	usage string
}{
	{"keep", config.KeyKeepOriginals, true, "Leave originals in the input tree"},
	{"convert", config.KeyConvert, false, "Convert HEIC images to JPEG"},
	{"archive", config.KeyArchiveConverted, false, "Keep converted originals under migrated/"},
	{"fix-date", config.KeyFixDate, false, "Write the inferred date into images without one"},
	{"match-date", config.KeyMatchDate, false, "Set file times to the embedded capture date"},
	{"check-small", config.KeyCheckSmall, false, "Route thumbnail-sized images to small/"},
	{"rollover", config.KeyRollover, true, "Keep replaced files as numbered versions"},
	{"recreate", config.KeyRecreate, false, "Move the existing output aside and rebuild it"},
	{"manifest", config.KeyManifest, false, "Update the manifest CSV after organizing"},
}

type options struct {
	cli     config.CLIArgs
	init    bool
	json    bool
	verbose bool
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("imageclean", flag.ContinueOnError)
	fs.SetOutput(stderr)

	execute := fs.Bool("execute", false, "Actually move files (default is dry-run)")
	executeShort := fs.Bool("x", false, "Actually move files (short for -execute)")
	manifestShort := fs.Bool("m", false, "Update manifest (short for -manifest)")
	cfgPath := fs.String("config", "", "Config file (default: ./"+config.FileName+" when present)")
	input := fs.String("in", "", "Input tree to import from")
	output := fs.String("out", "", "Organized output tree")
	initFlag := fs.Bool("init", false, "Create the output library and a starting config")
	jsonFlag := fs.Bool("json", false, "Print the run report as JSON on stdout")
	verbose := fs.Bool("v", false, "Verbose logging")

	policies := make(map[string]*bool, len(policyFlags))
	keys := make(map[string]string, len(policyFlags))
	for _, p := range policyFlags {
		policies[p.name] = fs.Bool(p.name, p.def, p.usage)
		keys[p.name] = p.key
	}

	fs.Usage = func() {
		fmt.Fprintf(stderr, "ImageClean - Organize photos and files by date and description\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  imageclean [options] [input] [output]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  imageclean ~/Incoming ~/Photos            # Preview (dry-run, default)\n")
		fmt.Fprintf(stderr, "  imageclean -x ~/Incoming ~/Photos         # Execute\n")
		fmt.Fprintf(stderr, "  imageclean -x -keep=false -m in out      # Move, then update manifest\n")
		fmt.Fprintf(stderr, "  imageclean -init -out ~/Photos -in ~/In   # Initialize library and config\n")
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		cli: config.CLIArgs{
			ConfigPath: *cfgPath,
			Input:      *input,
			Output:     *output,
			Execute:    *execute || *executeShort,
			Bools:      map[string]bool{},
		},
		init:    *initFlag,
		json:    *jsonFlag,
		verbose: *verbose,
	}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := keys[f.Name]; ok {
			opts.cli.Bools[key] = *policies[f.Name]
		}
		if f.Name == "m" {
			opts.cli.Bools[config.KeyManifest] = *manifestShort
		}
	})

	rest := fs.Args()
	if len(rest) > 2 {
		return options{}, fmt.Errorf("too many arguments: %s", strings.Join(rest, " "))
	}
	if len(rest) > 0 && opts.cli.Input == "" {
		opts.cli.Input = rest[0]
	}
	if len(rest) > 1 && opts.cli.Output == "" {
		opts.cli.Output = rest[1]
	}
	return opts, nil
}

// =============================================================================
// Main Entry Point
// =============================================================================

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(stderr, "Error getting current directory:", err)
		return 1
	}
	osFs := afero.NewOsFs()

	eff, err := config.Load(osFs, cwd, opts.cli)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", config.Code(err), err)
		return 2
	}

	if opts.init {
		return initLibrary(osFs, eff, filepath.Join(cwd, config.FileName), stdout, stderr)
	}

	deps := run.Deps{
		Fs:     osFs,
		Hasher: phash.New(osFs),
		Codec:  convert.PlatformCodec(osFs),
		Log:    logger,
	}
	tool, err := exifx.Open()
	if err != nil {
		logger.Warn("exiftool unavailable; dates are read from EXIF only and never written", "error", err)
		tool = nil
	} else {
		defer tool.Close()
		deps.DateWriter = tool
		deps.Tags = tool
	}
	deps.Dates = &exifx.Reader{Fs: osFs, Tool: tool}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rr, err := run.Execute(ctx, eff, deps, newProgressUI(stderr, opts.verbose))
	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rr)
	} else {
		emitSummary(stdout, rr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if rr.Summary.Failed > 0 {
		return 1
	}
	return 0
}

// initLibrary creates the expected output structure and a starting config.
func initLibrary(fs afero.Fs, eff config.EffectiveConfig, cfgPath string, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "Initializing photo library at: %s\n\n", eff.Output)

	created, err := run.Init(fs, eff, cfgPath)
	for _, p := range created {
		fmt.Fprintf(stdout, "✓ %s\n", p)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing library: %v\n", err)
		return 1
	}
	if len(created) == 0 {
		fmt.Fprintln(stdout, "⊘ everything already exists")
	}

	fmt.Fprintln(stdout, "\nPhoto library is ready!")
	fmt.Fprintln(stdout, "Next steps:")
	fmt.Fprintln(stdout, "  1. Run: imageclean (preview)")
	fmt.Fprintln(stdout, "  2. Run: imageclean -x (organize)")
	return 0
}

func emitSummary(w io.Writer, rr domain.RunReport) {
	s := rr.Summary
	fmt.Fprintln(w)
	if rr.DryRun {
		fmt.Fprintf(w, "[DRY RUN] Would organize %d files\n", s.Planned)
	} else {
		fmt.Fprintf(w, "Organized %d files\n", s.Imported+s.Converted)
		if s.Converted > 0 {
			fmt.Fprintf(w, "Converted %d files\n", s.Converted)
		}
	}
	if s.Duplicate > 0 {
		fmt.Fprintf(w, "Skipped %d duplicates\n", s.Duplicate)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d already organized\n", s.Skipped)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "Failed %d files\n", s.Failed)
		for _, it := range rr.Items {
			if it.Status == domain.StatusFailed {
				fmt.Fprintf(w, "  %s %s: %s\n", it.Src, it.ErrorCode, it.ErrorMsg)
			}
		}
	}
	fmt.Fprintln(w, "\nDone!")
}
