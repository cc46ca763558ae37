// Package httpserver exposes the HTTP surface: token login, on-demand
// refresh, the websocket upgrade, health probes, version and metrics.
package httpserver
