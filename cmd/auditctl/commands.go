package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loanaudit/adapters/excel"
	"loanaudit/app"
	"loanaudit/domain/dataset"
	"loanaudit/internal/cleaning"
	"loanaudit/internal/fairness"
	"loanaudit/internal/quality"
	"loanaudit/internal/simulation"
	"loanaudit/internal/testkit"
)

func newQualityCmd(flags *globalFlags) *cobra.Command {
	var multiplier float64
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Report missing values and IQR outlier fences",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			res, err := s.svc.Quality(cmd.Context(), s.data, quality.Options{Multiplier: multiplier})
			if err != nil {
				return err
			}
			return s.print(cmd, res)
		},
	}
	cmd.Flags().Float64Var(&multiplier, "multiplier", 1.5, "IQR fence multiplier (1.0-3.0)")
	return cmd
}

// cleanFlags are shared by clean and pipeline
type cleanFlags struct {
	impute     []string
	outliers   string
	multiplier float64
}

func (f *cleanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.impute, "impute", nil, "Imputation steps as column=strategy (median, mean, mode, remove_rows); default imputes every column with gaps")
	cmd.Flags().StringVar(&f.outliers, "outliers", "cap", "Outlier policy: none, cap or remove")
	cmd.Flags().Float64Var(&f.multiplier, "multiplier", 1.5, "IQR fence multiplier for outlier handling (1.0-3.0)")
}

func (f *cleanFlags) request() (app.CleanRequest, error) {
	var req app.CleanRequest
	if len(f.impute) > 0 {
		plan, err := parsePlan(f.impute)
		if err != nil {
			return req, err
		}
		req.Plan = plan
	}
	method, err := cleaning.ParseOutlierMethod(f.outliers)
	if err != nil {
		return req, err
	}
	req.Policy = cleaning.OutlierPolicy{Method: method, Multiplier: f.multiplier}
	return req, nil
}

func parsePlan(specs []string) (cleaning.Plan, error) {
	plan := make(cleaning.Plan, 0, len(specs))
	for _, spec := range specs {
		column, name, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("imputation step %q must look like column=strategy", spec)
		}
		strategy, err := cleaning.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		plan = append(plan, cleaning.Step{Column: strings.TrimSpace(column), Strategy: strategy})
	}
	return plan, nil
}

func newCleanCmd(flags *globalFlags) *cobra.Command {
	var cf cleanFlags
	var out string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Impute missing values and handle outliers",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := cf.request()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			res, err := s.svc.Clean(cmd.Context(), s.data, req)
			if err != nil {
				return err
			}
			if err := s.save(res.Dataset, out); err != nil {
				return err
			}
			return s.print(cmd, map[string]interface{}{
				"run_id":      res.RunID,
				"actions":     res.Actions,
				"rows_before": res.RowsBefore,
				"rows_after":  res.RowsAfter,
			})
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the cleaned dataset to this .xlsx or .csv file")
	return cmd
}

// fairnessFlags are shared by fairness and pipeline
type fairnessFlags struct {
	sensitive string
	outcome   string
	positive  string
}

func (f *fairnessFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sensitive, "sensitive", dataset.ColGender, "Sensitive attribute column")
	cmd.Flags().StringVar(&f.outcome, "outcome", dataset.ColLoanStatus, "Outcome column")
	cmd.Flags().StringVar(&f.positive, "positive", "Y", "Outcome value counted as positive")
}

func (f *fairnessFlags) request() fairness.Request {
	return fairness.Request{
		SensitiveColumn: f.sensitive,
		OutcomeColumn:   f.outcome,
		PositiveValue:   dataset.String(f.positive),
	}
}

func newFairnessCmd(flags *globalFlags) *cobra.Command {
	var ff fairnessFlags
	cmd := &cobra.Command{
		Use:   "fairness",
		Short: "Measure demographic parity of an outcome across a sensitive attribute",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			res, err := s.svc.Fairness(cmd.Context(), s.data, ff.request())
			if err != nil {
				return err
			}
			return s.print(cmd, res)
		},
	}
	ff.register(cmd)
	return cmd
}

// simulationFlags are shared by simulate and pipeline
type simulationFlags struct {
	cfg  simulation.Config
	seed int64
}

func (f *simulationFlags) register(cmd *cobra.Command) {
	def := simulation.DefaultConfig()
	cmd.Flags().Float64Var(&f.cfg.IncomeUncertaintyPct, "income-pct", def.IncomeUncertaintyPct, "Income uncertainty in percent (0-20)")
	cmd.Flags().Float64Var(&f.cfg.LoanAmountUncertaintyPct, "loan-pct", def.LoanAmountUncertaintyPct, "Loan amount uncertainty in percent (0-20)")
	cmd.Flags().Float64Var(&f.cfg.CreditHistoryNoiseProb, "credit-noise", def.CreditHistoryNoiseProb, "Credit history flip probability (0-0.1)")
	cmd.Flags().Float64Var(&f.cfg.HumanReviewThreshold, "threshold", def.HumanReviewThreshold, "Risk score above which applications are flagged (0-1)")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Simulation seed")
}

func newSimulateCmd(flags *globalFlags) *cobra.Command {
	var sf simulationFlags
	var seeds []int64
	var out string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a seeded risk simulation, or a batch with --seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if len(seeds) > 0 {
				res, err := s.svc.SimulateBatch(cmd.Context(), s.data, sf.cfg, seeds)
				if err != nil {
					return err
				}
				return s.print(cmd, res)
			}

			res, err := s.svc.Simulate(cmd.Context(), s.data, sf.cfg, sf.seed)
			if err != nil {
				return err
			}
			if err := s.save(res.Dataset, out); err != nil {
				return err
			}
			return s.print(cmd, map[string]interface{}{
				"run_id":  res.RunID,
				"seed":    res.Seed,
				"summary": res.Summary,
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().Int64SliceVar(&seeds, "seeds", nil, "Run one simulation per seed concurrently")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the simulated dataset to this .xlsx or .csv file")
	return cmd
}

func newPipelineCmd(flags *globalFlags) *cobra.Command {
	var (
		cf         cleanFlags
		ff         fairnessFlags
		sf         simulationFlags
		multiplier float64
		out        string
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run quality, cleaning, fairness and simulation in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, err := cf.request()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			req := app.PipelineRequest{
				Quality:    quality.Options{Multiplier: multiplier},
				Clean:      clean,
				Fairness:   ff.request(),
				Simulation: sf.cfg,
				Seed:       sf.seed,
			}
			res, err := s.svc.Pipeline(cmd.Context(), s.data, req)
			if err != nil {
				return err
			}
			if err := s.save(res.Simulation.Dataset, out); err != nil {
				return err
			}
			return s.print(cmd, map[string]interface{}{
				"quality":    res.Quality.Report,
				"cleaning":   res.Cleaning.Actions,
				"fairness":   res.Fairness.Metrics,
				"simulation": res.Simulation.Summary,
			})
		},
	}
	cf.register(cmd)
	ff.register(cmd)
	sf.register(cmd)
	cmd.Flags().Float64Var(&multiplier, "quality-multiplier", 1.5, "IQR fence multiplier for the quality report")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the final simulated dataset to this .xlsx or .csv file")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cfg := testkit.DefaultLoanConfig()
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a seeded synthetic loan application dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := testkit.NewLoanGenerator(cfg).Generate()
			if err != nil {
				return err
			}
			if err := excel.WriteFile(ds, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", ds.Len(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Records, "records", cfg.Records, "Number of applications")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed")
	cmd.Flags().Float64Var(&cfg.MissingRate, "missing-rate", cfg.MissingRate, "Share of cells blanked in each gap column")
	cmd.Flags().StringVarP(&out, "out", "o", "loan_applications.xlsx", "Output .xlsx or .csv file")
	return cmd
}
