package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/creibaud/sqlmorpher/internal/config"
	"github.com/creibaud/sqlmorpher/internal/db"
	"github.com/creibaud/sqlmorpher/internal/engine"
	"github.com/creibaud/sqlmorpher/internal/models"
	"github.com/creibaud/sqlmorpher/internal/report"
	"github.com/creibaud/sqlmorpher/internal/transform"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sqlmorpher",
		Short:         "Migrate rows between relational databases through declarative joins and transforms",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.String("config", "sqlmorpher.yaml", "path to the migration configuration file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")
	flags.Uint64("page-size", 0, "override the source page size")
	flags.Int("batch-size", 0, "override the target batch size")
	flags.Float64("max-error-rate", -1, "abort a migration once failed/read exceeds this rate")
	flags.String("report-xlsx", "", "write the migration report to this xlsx file")

	viper.SetEnvPrefix("SQLMORPHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(flags))

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger(viper.GetString("log-level"), viper.GetString("log-format"))
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		zap.S().Errorw("failed to load configuration", "error", err)
		return err
	}

	opts := config.DefaultOptions()
	if v := viper.GetUint64("page-size"); v > 0 {
		opts.PageSize = v
	}
	if v := viper.GetInt("batch-size"); v > 0 {
		opts.BatchSize = v
	}
	if v := viper.GetFloat64("max-error-rate"); v >= 0 {
		opts.MaxErrorRate = v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := db.Open(ctx, cfg.Databases.Source)
	if err != nil {
		zap.S().Errorw("failed to open source database", "error", err)
		return err
	}
	defer source.Close()

	target, err := db.Open(ctx, cfg.Databases.Target)
	if err != nil {
		zap.S().Errorw("failed to open target database", "error", err)
		return err
	}
	defer target.Close()

	// Transform functions are registered by callers embedding the engine;
	// the bare CLI runs pure rename/projection migrations.
	eng, err := engine.New(source, target, transform.NewRegistry(), opts)
	if err != nil {
		return err
	}

	rep := eng.Migrate(ctx, cfg.Migrations)
	printSummary(rep)

	if path := viper.GetString("report-xlsx"); path != "" {
		if err := report.WriteXLSX(rep, path); err != nil {
			zap.S().Errorw("failed to write xlsx report", "path", path, "error", err)
			return err
		}
		zap.S().Infow("report written", "path", path)
	}

	if rep.Failed() {
		return fmt.Errorf("run %s finished with failures", rep.RunID)
	}
	return nil
}

func buildLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

func printSummary(rep *models.Report) {
	fmt.Printf("run %s\n", rep.RunID)
	for _, res := range rep.Results {
		status := color.GreenString(string(res.Status))
		switch res.Status {
		case models.StatusFailed:
			status = color.RedString(string(res.Status))
		case models.StatusCancelled:
			status = color.YellowString(string(res.Status))
		}
		fmt.Printf("  %-30s %s  read=%d transformed=%d filtered=%d written=%d errors=%d\n",
			res.Name, status, res.RowsRead, res.RowsTransformed, res.RowsFiltered,
			res.RowsWritten, len(res.Errors))
		if res.Err != nil {
			fmt.Printf("    %s\n", color.RedString(res.Err.Error()))
		}
	}
}
