package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	_ "github.com/xaionaro-go/audiosync/pkg/source/implementations/ffmpeg"
	_ "github.com/xaionaro-go/audiosync/pkg/source/implementations/vorbis"
	_ "github.com/xaionaro-go/audiosync/pkg/source/implementations/wav"
	"github.com/xaionaro-go/observability"
)

type runFunc func(ctx context.Context, args []string) error

type command struct {
	Usage       string
	Description string
	Setup       func(flags *pflag.FlagSet, common *commonFlags) runFunc
}

var commands = map[string]command{
	"analyze": {
		Usage:       "analyze [flags] <files, directories or a project file>...",
		Description: "place every clip on the shared timeline and print the report",
		Setup:       setupAnalyze,
	},
	"sync": {
		Usage:       "sync [flags] <files, directories or a project file>...",
		Description: "analyze and export every track as a continuous WAV file",
		Setup:       setupSync,
	},
	"drift": {
		Usage:       "drift [flags] <reference file> <target file>",
		Description: "measure the clock drift of one recording relative to another",
		Setup:       setupDrift,
	},
	"info": {
		Usage:       "info [flags] [project file or id]",
		Description: "show a saved project, or list the projects of the --store library",
		Setup:       setupInfo,
	},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags] [args]\n\ncommands:\n", os.Args[0])
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].Description)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		return 2
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command '%s'\n\n", name)
		usage()
		return 2
	}

	flags := pflag.NewFlagSet(name, pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s %s\n\n", os.Args[0], cmd.Usage)
		flags.PrintDefaults()
	}
	common := addCommonFlags(flags)
	runCmd := cmd.Setup(flags, common)
	if err := flags.Parse(os.Args[2:]); err != nil {
		return 2
	}

	l := logrus.Default().WithLevel(common.LoggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if common.NetPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(common.NetPprofAddr, nil)) })
	}

	if err := runCmd(ctx, flags.Args()); err != nil {
		logger.Errorf(ctx, "%s: %v", name, err)
		return 1
	}
	return 0
}
