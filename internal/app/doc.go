// Package app assembles the condor finder from its configuration and
// manages its lifecycle.
//
// New wires the market data source, the search engine, chart rendering,
// exports, the WebSocket hub, the optional NATS publisher and watchlist
// scheduler, and the HTTP router. Nothing listens until Start or Run.
//
//	cfg, _ := config.Load()
//	a, err := app.New(cfg, logger, app.Options{})
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	return a.Run(ctx)
//
// An Application built only to run searches, as the CLI does, is released
// with Close instead of Stop.
package app
