package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/audiosync/pkg/model"
)

const envPrefix = "AUDIOSYNC_"

type commonFlags struct {
	LoggerLevel       logger.Level
	NetPprofAddr      string
	JSON              bool
	MaxOffset         float64
	NoDriftCorrection bool
	Reference         string
	Store             string

	flags *pflag.FlagSet
}

// addCommonFlags registers the flags shared by all the commands. The
// defaults are taken from the AUDIOSYNC_* environment variables (which
// may come from a .env file).
func addCommonFlags(flags *pflag.FlagSet) *commonFlags {
	f := &commonFlags{
		LoggerLevel: logger.LevelWarning,
		flags:       flags,
	}
	if v := envString("LOG_LEVEL", ""); v != "" {
		_ = f.LoggerLevel.Set(v)
	}
	flags.Var(&f.LoggerLevel, "log-level", "Log level")
	flags.StringVar(&f.NetPprofAddr, "net-pprof-listen-addr", envString("NET_PPROF_LISTEN_ADDR", ""), "an address to listen for incoming net/pprof connections")
	flags.BoolVar(&f.JSON, "json", envBool("JSON", false), "print the results as JSON")
	flags.Float64Var(&f.MaxOffset, "max-offset", envFloat("MAX_OFFSET", 0), "bound the offset search to ±N seconds (0 means unbounded)")
	flags.BoolVar(&f.NoDriftCorrection, "no-drift-correction", envBool("NO_DRIFT_CORRECTION", false), "do not correct the measured clock drift when stitching (the drift is still measured and reported)")
	flags.StringVar(&f.Reference, "reference", envString("REFERENCE", ""), "the name of the track to use as the reference (automatic if empty)")
	flags.StringVar(&f.Store, "store", envString("STORE", ""), "the project library: a directory, or a SQLite database if it ends with .sqlite3 or .db")
	return f
}

// AnalysisConfig returns the base config (the defaults if nil) overridden
// by the flags. The flags left at their defaults override only the defaults.
func (f *commonFlags) AnalysisConfig(base *model.AnalysisConfig) model.AnalysisConfig {
	if base == nil {
		cfg := model.DefaultAnalysisConfig()
		cfg.MaxOffset = f.MaxOffset
		cfg.DriftCorrection = !f.NoDriftCorrection
		return cfg
	}
	cfg := *base
	if f.flags.Changed("max-offset") {
		cfg.MaxOffset = f.MaxOffset
	}
	if f.flags.Changed("no-drift-correction") {
		cfg.DriftCorrection = !f.NoDriftCorrection
	}
	return cfg
}

func envString(name, defaultValue string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

func envBool(name string, defaultValue bool) bool {
	v, err := strconv.ParseBool(envString(name, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func envInt(name string, defaultValue int) int {
	v, err := strconv.Atoi(envString(name, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func envFloat(name string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(envString(name, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}
