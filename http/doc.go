// Package http provides the HTTP API for the shelfkeep catalog.
//
// The API serves a single shared-password library: every catalog route is
// gated by PasswordMiddleware while health, password verification and the
// external catalog search stay open. Cover photo uploads arrive as
// multipart forms and are bounded at the transport edge, both in size
// (MaxBytesReader) and content type (images only), before they reach the
// service layer.
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    Password:        "secret",
//	    DatabaseBackend: "json",
//	    StorageBackend:  "filesystem",
//	}
//	handler := http.NewHandler(&handlerCfg, service, searchClient, uploadsFS)
//	http.ListenAndServe(":8080", handler.Router())
//
// The uploads handler serves locally stored cover files under /uploads/ and
// may be nil when covers live on remote object storage.
package http
