// Package health provides liveness, readiness and version endpoints for the
// rulebook API server.
//
// Components register named checks; readiness runs them concurrently, each
// bounded by the checker's timeout. Required checks take the instance out
// of rotation when they fail, observed ones only mark it degraded:
//
//	checker := health.New(2 * time.Second)
//	checker.Require("store", store.Ping)
//	checker.Observe("prune", func(context.Context) error { return scheduler.LastError("prune") })
//
//	r.Get("/healthz", checker.LivenessHandler())
//	r.Get("/readyz", checker.ReadinessHandler())
//	r.Get("/version", health.VersionHandler(version, commit, buildTime))
//
// Liveness never runs checks, so a slow database cannot get the process
// restarted; it only takes the instance out of rotation through readiness.
package health
