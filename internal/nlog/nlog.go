// Package nlog provides the leveled logging surface used throughout rdpmux.
//
// Modelled on aistore's cmn/nlog: a thin wrapper over the standard
// log package rather than a third-party structured logger, because
// that is what the teacher itself reaches for here.
package nlog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

var std = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

// verbosity gates Infoln/Infof; Warningln/Errorln always print, mirroring
// cmn.Rom.V(n, module) gating only the chattier info-level call sites.
var verbosity atomic.Int32

// SetVerbosity sets the global verbosity level. Infoln/Infof/InfoDepth
// log at level 0, so only a negative level disables them.
func SetVerbosity(v int) { verbosity.Store(int32(v)) }

// V reports whether logging at the given verbosity level is enabled.
func V(level int) bool { return int32(level) <= verbosity.Load() }

func Infoln(v ...any) {
	if V(0) {
		std.Output(2, "I "+fmt.Sprintln(v...))
	}
}

func Infof(format string, v ...any) {
	if V(0) {
		std.Output(2, "I "+fmt.Sprintf(format, v...)+"\n")
	}
}

// InfoDepth logs at info level with extra caller-skip, mirroring
// nlog.InfoDepth's use at call sites that wrap logging in a helper.
func InfoDepth(depth int, v ...any) {
	if V(0) {
		std.Output(2+depth, "I "+fmt.Sprintln(v...))
	}
}

func Warningln(v ...any) {
	std.Output(2, "W "+fmt.Sprintln(v...))
}

func Warningf(format string, v ...any) {
	std.Output(2, "W "+fmt.Sprintf(format, v...)+"\n")
}

func Errorln(v ...any) {
	std.Output(2, "E "+fmt.Sprintln(v...))
}

func Errorf(format string, v ...any) {
	std.Output(2, "E "+fmt.Sprintf(format, v...)+"\n")
}

// ErrorDepth logs an error with extra caller-skip (see InfoDepth).
func ErrorDepth(depth int, v ...any) {
	std.Output(2+depth, "E "+fmt.Sprintln(v...))
}
