// Command salescope compares sales forecasting models on a CSV or XLSX file,
// or serves the same pipeline over HTTP.
//
//	salescope compare -input sales.csv -out results
//	salescope serve -config salescope.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/salescope/compare"
	"github.com/YuminosukeSato/salescope/config"
	"github.com/YuminosukeSato/salescope/pipeline"
	"github.com/YuminosukeSato/salescope/pkg/errors"
	"github.com/YuminosukeSato/salescope/pkg/log"
	"github.com/YuminosukeSato/salescope/server"
)

const usage = `usage: salescope <command> [flags]

commands:
  compare  train and compare the models on a file, write bundles and charts
  serve    start the HTTP server
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "salescope:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "compare":
		return runCompare(ctx, args[1:], stdout)
	case "serve":
		return runServe(ctx, args[1:])
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Newf("unknown command %q", args[0])
	}
}

// commonFlags registers the flags shared by every command.
func commonFlags(fs *flag.FlagSet) (cfgPath, envFile *string) {
	cfgPath = fs.String("config", "", "YAML configuration file")
	envFile = fs.String("env", ".env", "dotenv file loaded before reading the environment")
	return cfgPath, envFile
}

func loadConfig(cfgPath, envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCompare(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	cfgPath, envFile := commonFlags(fs)
	input := fs.String("input", "", "CSV or XLSX sales file (required)")
	out := fs.String("out", "", "output directory (default: paths.output_dir)")
	parallel := fs.Bool("parallel", false, "evaluate cross-validation folds concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		fs.Usage()
		return errors.New("-input is required")
	}

	cfg, err := loadConfig(*cfgPath, *envFile)
	if err != nil {
		return err
	}
	if *out == "" {
		*out = cfg.Paths.OutputDir
	}
	if *parallel {
		cfg.Compare.Parallel = true
	}

	logger := log.GetLoggerWithName("cli")
	res, err := pipeline.New(cfg).RunFile(ctx, *input)
	if err != nil {
		return err
	}
	if !res.Compared() {
		logger.Warn("No target column found; nothing was compared", log.PathKey, *input)
		return nil
	}
	if err := res.Save(*out); err != nil {
		return err
	}
	charts, err := res.SaveCharts(*out)
	if err != nil {
		return err
	}
	logger.Info("Comparison written", log.PathKey, *out, "charts", charts)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Table map[string]compare.Row `json:"comparison"`
		Best  compare.Best           `json:"best_model"`
	}{Table: res.Report.Table(), Best: res.Report.Best()})
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath, envFile := commonFlags(fs)
	addr := fs.String("addr", "", "listen address (default: server.addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, *envFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	return server.New(cfg).ListenAndServe(ctx)
}
