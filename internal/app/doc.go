// Package app provides the application service layer.
//
// Computer turns the current insight of an industry into an InsightChange and records it.
// Scheduler drives periodic sweeps across all industries and the on-demand refresh.
// Depends on domain interfaces, not concrete implementations.
package app
