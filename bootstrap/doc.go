// Package bootstrap builds and runs the ctb HTTP server. It initializes the
// database and validator, mounts the route tree and owns the serve/shutdown
// lifecycle.
//
// Usage:
//
//	deps, err := bootstrap.DefaultDependencies(cfg, bootstrap.Services{}, sugar)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := bootstrap.NewServer(ctx, cfg, deps)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	if err := srv.ListenAndServe(ctx); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap
