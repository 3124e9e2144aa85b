// Package api exposes the verification engine over HTTP.
//
// Routes:
//
//	POST /verify/start   {"phone"}        -> {"id"}
//	POST /verify/check   {"id","code"}    -> {"verified":true}
//	POST /verify/status  {"id"}           -> {"id","phone","created","verified"}
//	GET  /verify/{id}                     -> same as /verify/status
//	GET  /health                          -> {"status":"ok"}
//	GET  /metrics                         -> Prometheus text, when configured
//
// Errors are {"error":"<message>"}. Rate limiting answers 429, lost races 409,
// store or delivery outages 503 and everything else the caller did wrong 400.
package api
