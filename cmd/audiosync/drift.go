package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiosync/pkg/engine"
	"github.com/xaionaro-go/audiosync/pkg/source"
)

func setupDrift(flags *pflag.FlagSet, common *commonFlags) runFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("expected exactly 2 files: the reference and the target, got %d", len(args))
		}
		e := engine.New(source.NewAuto())
		report, err := e.MeasureDrift(ctx, args[0], args[1], common.AnalysisConfig(nil))
		if err != nil {
			return err
		}
		if common.JSON {
			return printJSON(report)
		}
		fmt.Println(renderDriftReport(args[0], args[1], report))
		return nil
	}
}
