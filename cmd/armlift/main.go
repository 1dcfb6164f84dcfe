package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"armlift/internal/arch"
	"armlift/internal/config"
	"armlift/internal/logging"
)

// app is the state shared by subcommands: the resolved configuration and
// the logger built from it.
type app struct {
	cfgPath string
	flags   struct {
		arch          string
		logLevel      string
		maxBlockBytes int
		out           string
	}

	cfg     config.Config
	archSet bool // --arch given explicitly
	log     *log.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "armlift",
		Short:         "Lift ARM basic blocks into an intermediate language",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd, cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "JSON configuration file")
	pf.StringVar(&a.flags.arch, "arch", "", fmt.Sprintf("instruction set %v", arch.Names()))
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error (default $"+logging.EnvLevel+" or info)")
	pf.StringVar(&a.flags.out, "out", "", "output directory for reports (default from config, or .)")
	pf.IntVar(&a.flags.maxBlockBytes, "max-block-bytes", 0, "end blocks after this many bytes (0 = unlimited)")

	root.AddCommand(newLiftCmd(a), newDisasmCmd(a), newExploreCmd(a), newSchemaCmd())
	return root
}

// configure loads the config file, applies flags that were set explicitly
// and builds the logger.
func (a *app) configure(cmd *cobra.Command, logOut io.Writer) error {
	cfg := config.Default()
	if a.cfgPath != "" {
		loaded, err := config.Load(a.cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("arch") {
		cfg.Arch = a.flags.arch
		a.archSet = true
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("max-block-bytes") {
		cfg.MaxBlockBytes = a.flags.maxBlockBytes
	}
	if flags.Changed("out") {
		cfg.OutputDir = a.flags.out
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.LogLevel
	if !flags.Changed("log-level") && a.cfgPath == "" {
		// Let the environment decide when nothing was configured.
		level = ""
	}
	a.cfg = cfg
	a.log = logging.New(logOut, level)
	return nil
}
