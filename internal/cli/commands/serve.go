package commands

import (
	"github.com/leapstack-labs/payinsight/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		addr    string
		watch   bool
		history bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analytics over HTTP",
		Long: `Start the HTTP API. Metrics are recomputed from the loaded dataset on
every request; pass ?as_of=YYYY-MM-DD to pin the reference date.

With --watch the dataset is reloaded when an input file changes and
subscribers of /api/events are notified.`,
		Example: `  payinsight serve
  payinsight serve --addr 127.0.0.1:9000 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			ctx := cmd.Context()

			scfg := server.Config{
				Addr:     cmdCtx.Cfg.Server.Addr,
				Paths:    cmdCtx.Cfg.Data,
				Analysis: cmdCtx.Cfg.Analysis,
				Watch:    watch,
				Logger:   cmdCtx.Logger,
			}
			if cmd.Flags().Changed("addr") {
				scfg.Addr = addr
			}
			if history {
				store, err := cmdCtx.OpenStore(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				scfg.Store = store
			}

			srv, err := server.New(ctx, scfg)
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Success("Serving on http://" + displayAddr(scfg.Addr))
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reload the dataset when input files change")
	cmd.Flags().BoolVar(&history, "history", true, "Serve run history at /api/runs")

	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
