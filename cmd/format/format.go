package format

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/format"
	"github.com/codefmt/codefmt/stats"
	"github.com/codefmt/codefmt/workspace"
)

func Run(v *viper.Viper, statz *stats.Stats, cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(args) == 0 {
		return fmt.Errorf("a target project or solution manifest must be specified")
	}

	// the first arg is the manifest to open, any remaining args form the explicit file list
	target := args[0]
	files := args[1:]

	// create an app context and listen for shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		cancel()
	}()

	fsys := osfs.New("/")
	provider := workspace.NewProvider(fsys)
	runner := format.NewRunner(cfg, fsys, provider, nil, statz)

	result, err := runner.Run(ctx, target, files)

	// report statistics even when persistence failed; the diff was computed before the save
	statz.Print(os.Stdout)

	if err != nil {
		return fmt.Errorf("run failed (exit status %d): %w", result.ExitStatus, err)
	}

	return nil
}
