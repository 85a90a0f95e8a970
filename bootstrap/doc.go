// Package bootstrap orchestrates the application lifecycle: component
// registration, startup/shutdown hooks, readiness checks, and graceful
// shutdown on OS signals.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp("assessd", version.Version, &cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.RegisterComponent(dbComponent)
//	app.RegisterComponent(serverComponent)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Components start in registration order and stop in reverse order.
package bootstrap
