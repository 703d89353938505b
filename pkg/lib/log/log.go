// Package log provides the logging interface for the kage SDK.
//
// The SDK accepts any implementation of [Logger]. Use [Noop] to disable
// logging (this is the default when no logger is configured).
package log

import "github.com/slok/kage/internal/log"

// Logger is the interface that loggers must implement for the SDK.
//
// Only the format methods (Infof, Warningf, Errorf, Debugf) need meaningful
// implementations for most use cases.
type Logger = log.Logger

// Kv is a helper type for structured logging key-value pairs.
type Kv = log.Kv

// Noop is a logger that discards all log output.
var Noop = log.Noop
