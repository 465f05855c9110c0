// Package server provides the rulebook HTTP API.
//
// The server evaluates single rules, executes rule sets and serves the run
// history kept in a runstore.Store. It also exposes health, version and
// metrics endpoints.
//
// # Basic Usage
//
//	store, err := runstore.Open(ctx, &cfg.Store, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	srv, err := server.New(cfg, server.Options{
//	    Store:   store,
//	    Metrics: collector,
//	    Tracer:  tracer,
//	    Logger:  logger,
//	})
//	if err != nil {
//	    return err
//	}
//
//	// Blocks until ctx is cancelled, then shuts down gracefully.
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Endpoints
//
//	POST /v1/evaluate   {"rule": "...", "context": {...}, "trace": false}
//	POST /v1/execute    {"name": "...", "rules": [{"id": "...", "records": [...]}]}
//	GET  /v1/runs       ?set=&outcome=&since=&until=&limit=&offset=&order=asc|desc
//	GET  /v1/runs/{id}
//	GET  /healthz, /readyz, /version
//	GET  /metrics       (configurable path, when metrics are enabled)
//
// Rules given to /v1/execute may use text and a context instead of
// records:
//
//	{"id": "r1", "text": "IF ( PSR < constant ) THEN approve()", "context": {"PSR": 2, "constant": 4}}
//
// A rule that does not parse or evaluate is answered with 422 from
// /v1/evaluate, with its line, column and a suggestion when one is known.
// For "IF PSR < 3 THN approve()":
//
//	{
//	    "error": {
//	        "message": "unexpected \"THN\", expected AND, OR or THEN",
//	        "type": "syntax_error",
//	        "line": 1,
//	        "column": 12,
//	        "lexeme": "THN",
//	        "expected": ["AND", "OR", "THEN"],
//	        "suggestion": "Did you mean 'THEN'?"
//	    }
//	}
//
// /v1/execute never fails on a bad rule: the rule is excluded and listed in
// the report, as the executor does for every batch.
//
// # Middleware
//
// Requests pass through, from the outside in: panic recovery, request ID
// (X-Request-ID), tracing when a tracer is configured, logging and CORS.
// API routes additionally enforce the body size limit, a JSON content type
// and the write timeout.
package server
