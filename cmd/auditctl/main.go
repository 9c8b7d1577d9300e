package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loanaudit/adapters/excel"
	"loanaudit/app"
	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	"loanaudit/internal/config"
	"loanaudit/internal/container"
	"loanaudit/internal/logging"
	"loanaudit/internal/testkit"
)

// globalFlags are shared by every subcommand. Empty values fall back to the
// environment configuration.
type globalFlags struct {
	file     string
	sheet    string
	records  int
	dataSeed int64
	actor    string
	logLevel string
	showLog  bool
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "warning: could not read .env:", err)
	}

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "auditctl",
		Short: "Audit loan application data: quality, cleaning, fairness and risk simulation",
		Long: `auditctl runs audit stages over a loan application file (.xlsx or .csv)
or, when no file is given, over a seeded synthetic dataset. Results are printed as JSON.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.file, "file", "f", "", "Loan data file (.xlsx or .csv); default LOAN_DATA_FILE, else the synthetic generator")
	pf.StringVar(&flags.sheet, "sheet", "", "Worksheet to read; default LOAN_DATA_SHEET, else the first sheet")
	pf.IntVar(&flags.records, "records", 1000, "Synthetic records to generate when no file is given")
	pf.Int64Var(&flags.dataSeed, "data-seed", 42, "Seed for the synthetic generator")
	pf.StringVar(&flags.actor, "actor", "", "Actor recorded on provenance entries; default AUDIT_ACTOR")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.showLog, "show-provenance", true, "Include the provenance log in the output")

	rootCmd.AddCommand(
		newQualityCmd(flags),
		newCleanCmd(flags),
		newFairnessCmd(flags),
		newSimulateCmd(flags),
		newPipelineCmd(flags),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is the service plus the loaded snapshot for one invocation
type session struct {
	svc    *app.AuditService
	data   *dataset.Dataset
	flags  *globalFlags
	logger *zap.Logger
}

func openSession(ctx context.Context, flags *globalFlags) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.file != "" {
		cfg.Audit.DataFile = flags.file
	}
	if flags.sheet != "" {
		cfg.Audit.Sheet = flags.sheet
	}
	if flags.actor != "" {
		cfg.Audit.Actor = flags.actor
	}

	logger, err := logging.New(flags.logLevel, false)
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &session{svc: c.Service, flags: flags, logger: logger}
	if cfg.Audit.DataFile != "" {
		res, err := s.svc.Ingest(ctx, cfg.Audit.DataFile)
		if err != nil {
			return nil, err
		}
		s.data = res.Dataset
		return s, nil
	}

	gen := testkit.DefaultLoanConfig()
	gen.Records = flags.records
	gen.Seed = flags.dataSeed
	ds, err := testkit.NewLoanGenerator(gen).Generate()
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.Register(ctx, ds, fmt.Sprintf("synthetic generator (seed %d)", gen.Seed)); err != nil {
		return nil, err
	}
	s.data = ds
	return s, nil
}

// print writes the result with the provenance log as indented JSON
func (s *session) print(cmd *cobra.Command, result interface{}) error {
	out := map[string]interface{}{"result": result}
	if s.flags.showLog {
		entries, err := s.svc.Entries(cmd.Context(), provenance.Filter{})
		if err != nil {
			return err
		}
		out["provenance"] = entries
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// save writes a dataset when an output path was requested
func (s *session) save(ds *dataset.Dataset, path string) error {
	if path == "" || ds == nil {
		return nil
	}
	if err := excel.WriteFile(ds, path); err != nil {
		return err
	}
	s.logger.Info("dataset written", zap.String("path", path), zap.Int("rows", ds.Len()))
	return nil
}
