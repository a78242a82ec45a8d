package main

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasmcheck/wasmcheck"
	"github.com/wasmcheck/wasmcheck/wasm"
)

// reportRow is one line of the per-file csv report.
type reportRow struct {
	File    string `csv:"file"`
	Status  string `csv:"status"`
	Kind    string `csv:"kind"`
	Offset  uint64 `csv:"offset"`
	Message string `csv:"message"`
	// Functions counts the whole index space, Imports the imported prefix
	// and Exports the exported function names.
	Functions int `csv:"functions"`
	Imports   int `csv:"imports"`
	Exports   int `csv:"exports"`
}

func newValidateCommand(configFile *string, debug *bool) *cobra.Command {
	var allErrors bool
	var features string
	var canonical bool
	var parallel int
	var report string

	command := &cobra.Command{
		Use:   "validate [file|dir]...",
		Short: "Validate WebAssembly modules",
		Long: "Validate the given .wasm files, or every .wasm file under the given directories, " +
			"and exit non-zero if any is invalid.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd.Flags(), *configFile); err != nil {
				return err
			}
			logger, err := newLogger(*debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			config, err := validatorConfig(features, canonical, allErrors, parallel)
			if err != nil {
				return err
			}

			paths, err := collectModulePaths(args)
			if err != nil {
				return err
			}

			v := wasmcheck.NewValidatorWithConfig(config)
			rows := make([]reportRow, 0, len(paths))
			invalid := 0
			for _, path := range paths {
				row := validateFile(v, path, logger)
				if row.Status != "valid" {
					invalid++
				}
				rows = append(rows, row)
			}

			if report != "" {
				if err := writeReport(report, rows); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d modules invalid", invalid, len(paths))
			}
			return nil
		},
	}

	command.Flags().BoolVar(&allErrors, "all-errors", false,
		"report every defective function body instead of stopping at the first")
	command.Flags().StringVar(&features, "features", "1.0",
		`feature set to validate against: "1.0" or "2.0"`)
	command.Flags().BoolVar(&canonical, "canonical", false,
		"require shortest-form varint encodings")
	command.Flags().IntVar(&parallel, "parallel", 1,
		"number of goroutines validating function bodies per module")
	command.Flags().StringVar(&report, "report", "",
		"write a per-file csv report to this path")

	return command
}

func validatorConfig(features string, canonical, allErrors bool, parallel int) (*wasmcheck.ValidatorConfig, error) {
	config := wasmcheck.NewValidatorConfig().
		WithCanonicalVarints(canonical).
		WithCollectAllErrors(allErrors).
		WithParallelism(parallel)

	switch features {
	case "1.0":
		config = config.WithCoreFeatures(wasm.Features20191205)
	case "2.0":
		config = config.WithCoreFeatures(wasm.Features20220419)
	default:
		return nil, fmt.Errorf("unknown feature set %q: expected 1.0 or 2.0", features)
	}
	return config, nil
}

// collectModulePaths keeps file arguments as they are and walks directory
// arguments for .wasm files.
func collectModulePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".wasm") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func validateFile(v *wasmcheck.Validator, path string, logger *zap.Logger) reportRow {
	row := reportRow{File: path}

	source, err := os.ReadFile(path)
	if err != nil {
		row.Status = "error"
		row.Message = err.Error()
		logger.Error("read module", zap.String("file", path), zap.Error(err))
		return row
	}

	summary, err := v.Validate(source)
	if err != nil {
		row.Status = "invalid"
		row.Message = err.Error()
		row.Kind = wasm.KindOf(err).String()
		row.Offset, _ = wasm.OffsetOf(err)
		logger.Warn("invalid module",
			zap.String("file", path),
			zap.String("kind", row.Kind),
			zap.Uint64("offset", row.Offset),
			zap.Error(err))
		return row
	}

	row.Status = "valid"
	row.Functions = len(summary.Functions)
	row.Imports = int(summary.ImportedFunctionCount)
	for i := range summary.Functions {
		row.Exports += len(summary.Functions[i].ExportNames)
	}
	logger.Info("valid module",
		zap.String("file", path),
		zap.Int("functions", row.Functions),
		zap.Int("exports", row.Exports))
	return row
}

func writeReport(path string, rows []reportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	encoder := csvutil.NewEncoder(w)
	for i := range rows {
		if err := encoder.Encode(rows[i]); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
