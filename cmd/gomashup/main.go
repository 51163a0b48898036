package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appcfg "github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/driver"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/mashup"
)

const usage = `Usage: gomashup <SingerName> <NumberOfVideos> <AudioDuration> <OutputFileName>
Example: gomashup "Sharry Maan" 20 25 output.mp3
`

var errArgCount = errors.New("incorrect number of parameters")

// app carries the command's collaborators so tests can swap the runner.
type app struct {
	stdout, stderr io.Writer
	outDir         string
	newRunner      func(log *slog.Logger, cfg *appcfg.Config) driver.JobRunner

	cfgFile string
	verbose bool
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		outDir: ".",
		newRunner: func(log *slog.Logger, cfg *appcfg.Config) driver.JobRunner {
			return mashup.NewRunner(log, cfg, nil)
		},
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func (a *app) run(ctx context.Context, args []string) int {
	cmd := a.command()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ve *jobs.ValidationError
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(a.stdout, "\nCancelled by user.")
	case errors.Is(err, errArgCount):
		fmt.Fprintln(a.stdout, "Error: Incorrect number of parameters.")
		fmt.Fprint(a.stdout, usage)
	case errors.As(err, &ve):
		fmt.Fprintf(a.stdout, "Error: %s\n", ve.Message)
		fmt.Fprint(a.stdout, usage)
	default:
		fmt.Fprintf(a.stdout, "Error: %v\n", err)
	}
	return 1
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gomashup <SingerName> <NumberOfVideos> <AudioDuration> <OutputFileName>",
		Short: "Build an audio mashup from the first seconds of several search results",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 4 {
				return errArgCount
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.generate(cmd.Context(), args)
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.Flags().StringVar(&a.cfgFile, "config", "", "YAML config file (defaults are used when omitted)")
	cmd.Flags().BoolVarP(&a.verbose, "verbose", "v", false, "log pipeline details to stderr")
	return cmd
}

func (a *app) generate(ctx context.Context, args []string) error {
	cfg := appcfg.Default()
	if a.cfgFile != "" {
		loaded, err := appcfg.Load(a.cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	d := &driver.Sync{
		Rules:    jobs.CLIRules(cfg),
		Runner:   a.newRunner(logger, cfg),
		Dir:      a.outDir,
		Progress: a.progress,
	}
	rec, err := d.Submit(ctx, jobs.Input{Query: args[0], Sources: args[1], Duration: args[2], Output: args[3]})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Done.")
	fmt.Fprintf(a.stdout, "Output file: %s\n", rec.Location)
	return nil
}

func (a *app) progress(e mashup.Event) {
	switch e.Stage {
	case jobs.StageAcquiring:
		fmt.Fprintf(a.stdout, "[1/4] Downloading %d videos for singer/query: %s\n", e.Job.Sources, e.Job.Query)
	case jobs.StageTransforming:
		fmt.Fprintf(a.stdout, "[2/4] Converting completed (downloaded %d mp3 files).\n", e.Count)
		fmt.Fprintf(a.stdout, "[3/4] Cutting first %d seconds from each audio.\n", e.Job.SegmentSeconds)
	case jobs.StageAssembling:
		fmt.Fprintf(a.stdout, "[4/4] Merging and exporting to: %s\n", e.Job.OutputName)
	}
}
