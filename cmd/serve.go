package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/luma/svdrp/internal/env"
	"github.com/luma/svdrp/internal/httpapi"
	"github.com/luma/svdrp/service"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort int
)

func init() {
	addDestinationFlags(ServeCmd)

	flags := ServeCmd.Flags()

	flags.IntVar(&httpPort, "http-port", 7362, "The port to listen to HTTP requests on")
	flags.StringVarP(&host, "host", "a", "127.0.0.1", "The host to listen on")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pooled SVDRP connections over HTTP",
	Long: `Serve pooled SVDRP connections over HTTP

Usage
	svdrp serve --server 192.168.0.10

	curl -XPOST localhost:7362/connections -d '{"shared":true}'
	curl -XPOST localhost:7362/connections/0/commands -d '{"command":"LSTC"}'
	curl -XDELETE localhost:7362/connections/0

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		applyDestination(cmd, conf)

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		svc := service.New(conf.ServiceOptions(log))

		s := &http.Server{
			Handler: httpapi.NewRouter(svc, conf.DebugHTTP, log),
		}

		ln, err := reuseport.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(httpPort)))
		if err != nil {
			return err
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		log.Info("Listening",
			zap.Any("config", conf),
			zap.String("addr", ln.Addr().String()))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(ctx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := svc.Close(); err != nil {
			log.Error("Closing SVDRP connections failed", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func setFileLimit() (uint64, error) {
	var rLimit unix.Rlimit

	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
