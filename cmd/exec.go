package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/svdrp/internal/env"
	"github.com/luma/svdrp/protocol"
	"github.com/luma/svdrp/service"
)

var (
	// Print replies as JSON
	asJSON bool
)

func init() {
	addDestinationFlags(ExecCmd)

	ExecCmd.Flags().BoolVar(&asJSON, "json", false, "Print each reply as a JSON object")
}

var ExecCmd = &cobra.Command{
	Use:   "exec CMD...",
	Short: "Run SVDRP commands on one connection",
	Long: `Run SVDRP commands on one connection

Every argument is sent as one command, in order, and its reply is printed.

Usage
	svdrp exec --server 192.168.0.10 LSTC "LSTR 1"

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		for _, line := range args {
			if err := protocol.CheckLine(line); err != nil {
				return errors.Wrapf(err, "command %q", line)
			}
		}

		applyDestination(cmd, conf)

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}
		defer log.Sync()

		svc := service.New(conf.ServiceOptions(log))
		defer func() {
			if err := svc.Close(); err != nil {
				log.Warn("Closing connections failed", zap.Error(err))
			}
		}()

		h, err := svc.Acquire(conf.ServerIP, uint16(conf.ServerPort), false)
		if err != nil {
			return err
		}

		for _, line := range args {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			reply, err := svc.Execute(h, line+string(protocol.Terminal))
			if err != nil {
				return err
			}

			if err := printReply(cmd, reply); err != nil {
				return err
			}
		}

		_, err = svc.Release(h)
		return err
	},
}

func printReply(cmd *cobra.Command, reply *protocol.Reply) error {
	out := cmd.OutOrStdout()

	if !asJSON {
		_, err := fmt.Fprintln(out, reply.String())
		return err
	}

	b, err := reply.JSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(b))
	return err
}
