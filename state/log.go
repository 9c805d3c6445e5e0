package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// iavlLogger lets the IAVL tree log through the node logger. Comet has no
// warn level, so warnings go out at info with a level field.
type iavlLogger struct {
	cmtlog.Logger
}

var _ cosmoslog.Logger = iavlLogger{}

func newIAVLLogger(l cmtlog.Logger) cosmoslog.Logger {
	return iavlLogger{l.With("module", "iavl")}
}

func (l iavlLogger) Warn(msg string, keyVals ...any) {
	l.Logger.Info(msg, append(keyVals, "level", "warn")...)
}

func (l iavlLogger) With(keyVals ...any) cosmoslog.Logger {
	return iavlLogger{l.Logger.With(keyVals...)}
}

func (l iavlLogger) Impl() any { return l.Logger }
