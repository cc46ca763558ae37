// Package memory provides in-process implementations of the insight store and
// snapshot cache for single-instance runs and tests.
package memory
