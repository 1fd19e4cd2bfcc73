// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

/*
Package supervisor runs the long-lived Marketcast services under suture v4.

The tree isolates failures by layer:

	RootSupervisor ("marketcast")
	├── DataSupervisor ("data-layer")
	│   ├── model-store-gc       (modelstore.Store)
	│   └── retrain-scheduler    (services.RetrainService, if RETRAIN_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   └── event-router         (events.Router, if MESSAGING_ENABLED)
	└── APISupervisor ("api-layer")
	    └── http-server          (services.HTTPServerService)

A failing service is restarted with backoff. Retraining and event handling
never share a goroutine with request serving, so a stuck retrain pass cannot
stall predictions.

Supervisor events are logged through sutureslog, bridged to zerolog by
logging.NewSlogLogger:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddDataService(modelStore)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.Address(), cfg.Server.ShutdownTimeout, logger))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor
