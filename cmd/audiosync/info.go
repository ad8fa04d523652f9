package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
)

func setupInfo(flags *pflag.FlagSet, common *commonFlags) runFunc {
	return func(ctx context.Context, args []string) error {
		switch len(args) {
		case 0:
			if common.Store == "" {
				return fmt.Errorf("either a project or --store is required")
			}
			store, closeStore, err := openStore(common.Store)
			if err != nil {
				return err
			}
			defer closeStore()
			list, err := store.List(ctx)
			if err != nil {
				return err
			}
			if common.JSON {
				return printJSON(list)
			}
			fmt.Println(renderLibrary(common.Store, list))
			return nil
		case 1:
			p, err := loadProject(ctx, args[0], common)
			if err != nil {
				return err
			}
			if common.JSON {
				return printJSON(p)
			}
			fmt.Println(renderAnalysisReport(p, nil))
			return nil
		default:
			return fmt.Errorf("expected at most one project, got %d", len(args))
		}
	}
}
