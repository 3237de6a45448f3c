package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/logger"
)

const (
	formatJSON = "json"
	formatGrid = "grid"
)

var errRejected = errors.New("input rejected")

type options struct {
	file          string
	format        string
	out           string
	core          string
	maxPlacements int
	sample        bool
	issueToken    string
	tokenTTL      time.Duration
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logr.Sync() }()

	if err := run(os.Args[1:], os.Stdout, cfg, logr); err != nil {
		logr.Error("timetable-cli failed", zap.Error(err))
		if errors.Is(err, errRejected) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, appCfg *config.Config, logr *zap.Logger) error {
	cfg := appCfg.Scheduler
	opts, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}

	if opts.issueToken != "" {
		return writeToken(stdout, appCfg.JWT, opts)
	}

	input, err := loadInput(opts, cfg)
	if err != nil {
		return err
	}

	core := cfg.CoreSubjects
	if opts.core != "" {
		core = lo.Compact(lo.Map(strings.Split(opts.core, ","), func(id string, _ int) string {
			return strings.TrimSpace(id)
		}))
	}
	policy := scheduler.NewCoreSubjectPolicy(core, cfg.CoreSessions, cfg.DefaultSessions)
	engine := scheduler.NewEngine(policy, logr.Named("scheduler"), scheduler.EngineConfig{MaxPlacements: opts.maxPlacements})

	report := engine.Generate(input)

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch opts.format {
	case formatGrid:
		err = writeGrid(out, input, report)
	default:
		err = writeJSON(out, report)
	}
	if err != nil {
		return err
	}

	if report.HasFatal() {
		return fmt.Errorf("%w: %s", errRejected, report.Conflicts[0])
	}
	logr.Info("timetable generated",
		zap.Int("assignments", len(report.Assignments)),
		zap.Int("conflicts", len(report.Conflicts)),
		zap.Int("warnings", len(report.Warnings)),
	)
	return nil
}

func parseFlags(args []string, cfg config.SchedulerConfig) (options, error) {
	var opts options
	fs := flag.NewFlagSet("timetable-cli", flag.ContinueOnError)
	fs.StringVar(&opts.file, "file", "", "Path to a JSON input file")
	fs.StringVar(&opts.format, "format", formatJSON, "Output format: json or grid")
	fs.StringVar(&opts.out, "out", "", "Write output to this file instead of stdout")
	fs.StringVar(&opts.core, "core", "", "Comma-separated core subject ids")
	fs.IntVar(&opts.maxPlacements, "max-placements", cfg.MaxPlacements, "Upper bound on slot searches per run")
	fs.BoolVar(&opts.sample, "sample", false, "Use the built-in sample school instead of -file")
	fs.StringVar(&opts.issueToken, "issue-token", "", "Print an access token for this role and exit")
	fs.DurationVar(&opts.tokenTTL, "token-ttl", time.Hour, "Lifetime of the token printed by -issue-token")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.format != formatJSON && opts.format != formatGrid {
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.issueToken != "" {
		return opts, nil
	}
	if !opts.sample && opts.file == "" {
		return opts, errors.New("either -file or -sample is required")
	}
	return opts, nil
}

func loadInput(opts options, cfg config.SchedulerConfig) (scheduler.Input, error) {
	if opts.sample {
		return scheduler.SampleInput(), nil
	}
	raw, err := os.ReadFile(opts.file)
	if err != nil {
		return scheduler.Input{}, fmt.Errorf("read input: %w", err)
	}
	return decodeInput(raw, cfg)
}

// decodeInput fills an Input from JSON. Week options missing from the file
// keep the configured defaults.
func decodeInput(raw []byte, cfg config.SchedulerConfig) (scheduler.Input, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return scheduler.Input{}, fmt.Errorf("parse input: %w", err)
	}

	input := scheduler.Input{
		MaxDaysPerWeek: cfg.MaxDaysPerWeek,
		BalanceLoad:    cfg.BalanceLoad,
		PreferFiveDays: cfg.PreferFiveDays,
	}
	if input.MaxDaysPerWeek == 0 {
		input.MaxDaysPerWeek = 5
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &input,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return scheduler.Input{}, err
	}
	if err := decoder.Decode(doc); err != nil {
		return scheduler.Input{}, fmt.Errorf("decode input: %w", err)
	}
	return input, nil
}

// writeToken signs a token with the API's JWT settings so the HTTP
// endpoints can be exercised locally.
func writeToken(w io.Writer, cfg config.JWTConfig, opts options) error {
	role := models.UserRole(strings.ToUpper(opts.issueToken))
	known := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher, models.RoleStudent}
	if !lo.Contains(known, role) {
		return fmt.Errorf("unknown role %q", opts.issueToken)
	}
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.Secret, Issuer: cfg.Issuer})
	token, err := tokens.IssueToken("cli", role, opts.tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func writeJSON(w io.Writer, report scheduler.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeGrid(w io.Writer, input scheduler.Input, report scheduler.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, sheet := range service.GridWorkbook(input, report).Sheets {
		fmt.Fprintf(tw, "== %s ==\n", sheet.Title)
		fmt.Fprintln(tw, strings.Join(sheet.Headers, "\t"))
		for _, row := range sheet.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		fmt.Fprintln(tw)
	}
	for _, c := range report.Conflicts {
		fmt.Fprintf(tw, "conflict: %s\n", c)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(tw, "warning: %s\n", warn)
	}
	return tw.Flush()
}
