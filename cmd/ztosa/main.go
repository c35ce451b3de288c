// Command ztosa lowers exported programs to TOSA graphs.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zerfoo/ztosa/internal/config"
)

type app struct {
	configPath string
	logLevel   string
	logFile    string
	specs      []string
	preset     string

	cfg     *config.Config
	logOut  *os.File
	log     *logrus.Logger
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: logrus.New()}
	root := &cobra.Command{
		Use:           "ztosa",
		Short:         "Lower exported programs to TOSA",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a ztosa YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides config and "+config.EnvLogLevel+")")
	flags.StringVar(&a.logFile, "log-file", "", "log file, empty to log to stderr (overrides config and "+config.EnvLogFile+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newLowerCmd(a),
		newAnnotateCmd(a),
		newInspectCmd(a),
		newExportZMFCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the config and applies flag overrides, flags last.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if flags.Changed("log-file") {
		cfg.LogFile = a.logFile
	}
	if flags.Lookup("spec") != nil && flags.Changed("spec") {
		cfg.Specs = a.specs
	}
	if flags.Lookup("preset") != nil && flags.Changed("preset") {
		cfg.Quantization = a.preset
		cfg.Quantizer = nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.log.SetLevel(level)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "failed to open log file")
		}
		a.logOut = f
		a.log.SetOutput(f)
	}
	return nil
}

func (a *app) close() {
	if a.logOut == nil {
		return
	}
	if err := a.logOut.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
	}
	a.logOut = nil
}
