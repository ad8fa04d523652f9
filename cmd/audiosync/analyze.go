package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiosync/pkg/project"
)

type analyzeOutput struct {
	Project  *project.Project `json:"project"`
	Warnings []string         `json:"import_warnings,omitempty"`
}

func setupAnalyze(flags *pflag.FlagSet, common *commonFlags) runFunc {
	savePath := flags.String("save", envString("SAVE", ""), "save the project to this file")
	return func(ctx context.Context, args []string) error {
		s, err := newSession(ctx, common, args)
		if err != nil {
			return err
		}
		if err := s.Analyze(ctx, common.AnalysisConfig(s.Project.Config), common); err != nil {
			return err
		}
		if err := s.Save(ctx, *savePath, common); err != nil {
			return err
		}

		if common.JSON {
			return printJSON(analyzeOutput{Project: s.Project, Warnings: s.Warnings})
		}
		fmt.Println(renderAnalysisReport(s.Project, s.Warnings))
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("unable to serialize the output: %w", err)
	}
	return nil
}
