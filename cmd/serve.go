package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the outreach webhook server",
	Long:  "Receives email events and conversions from the outreach tool and serves pipeline run history.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		addr := fmt.Sprintf(":%d", port)

		// Tracking does not depend on the learning mode.
		srv := server.New(st, newLearner(st, model.LearningPassive), cfg.Server.AllowedOrigins)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, addr)
		})
		g.Go(func() error {
			newChecker(st).Run(gctx)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("serve: stopping", zap.Error(context.Cause(gctx)))
			return nil
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
