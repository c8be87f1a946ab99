package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/neuronlabs/uni-logger"

	"github.com/neuronlabs/docorm/errors"
)

// The levels used by the loggers.
const (
	LDEBUG3   = unilogger.DEBUG3
	LDEBUG2   = unilogger.DEBUG2
	LDEBUG    = unilogger.DEBUG
	LINFO     = unilogger.INFO
	LWARNING  = unilogger.WARNING
	LERROR    = unilogger.ERROR
	LCRITICAL = unilogger.CRITICAL
	// LUNKNOWN is the unspecified level. Module loggers with this level inherit the global one.
	LUNKNOWN  = unilogger.UNKNOWN
)

var (
	// ErrLogger is the error classification for the logger.
	ErrLogger = errors.New("logger")
	// ErrUnknownLevel is the error classification when provided logger level is not known.
	ErrUnknownLevel = errors.Wrap(ErrLogger, "unknown level")
)

// outputDepth is the number of frames between the caller and the unilogger output call.
// Both the package functions and the module loggers pass through 'output.write'.
const outputDepth = 5

var levelNames = map[string]unilogger.Level{
	"debug3":   LDEBUG3,
	"debug2":   LDEBUG2,
	"debug":    LDEBUG,
	"info":     LINFO,
	"warning":  LWARNING,
	"error":    LERROR,
	"critical": LCRITICAL,
}

// output is the shared destination of all the loggers.
type output struct {
	sync.RWMutex
	logger  unilogger.LeveledLogger
	debug   unilogger.DebugLeveledLogger
	level   unilogger.Level
	modules map[string]*ModuleLogger
}

var std = &output{level: LINFO, modules: map[string]*ModuleLogger{}}

// write sends the message to the logger if the 'level' is allowed by the 'min' level.
func (o *output) write(min, level unilogger.Level, prefix, format string, args []interface{}) {
	o.RLock()
	l, debug := o.logger, o.debug
	o.RUnlock()
	if l == nil || level < min {
		return
	}
	format = prefix + format
	switch level {
	case LDEBUG3:
		if debug != nil {
			debug.Debug3f(format, args...)
			return
		}
		l.Debugf(format, args...)
	case LDEBUG2:
		if debug != nil {
			debug.Debug2f(format, args...)
			return
		}
		l.Debugf(format, args...)
	case LDEBUG:
		l.Debugf(format, args...)
	case LINFO:
		l.Infof(format, args...)
	case LWARNING:
		l.Warningf(format, args...)
	default:
		l.Errorf(format, args...)
	}
}

func (o *output) current() unilogger.Level {
	o.RLock()
	defer o.RUnlock()
	return o.level
}

// Default sets the basic logger that writes to 'os.Stderr'.
func Default() {
	New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

// New sets the basic logger that writes to 'out' with given 'prefix' and standard library log 'flags'.
func New(out io.Writer, prefix string, flags int) {
	basic := unilogger.NewBasicLogger(out, prefix, flags)
	basic.SetOutputDepth(outputDepth)
	SetLogger(basic)
}

// SetLogger sets 'l' as the destination of all the loggers. The level filtering is done by this
// package, thus the level of 'l' is set to LDEBUG3 when possible.
func SetLogger(l unilogger.LeveledLogger) {
	std.Lock()
	defer std.Unlock()
	std.logger = l
	std.debug, _ = l.(unilogger.DebugLeveledLogger)
	if setter, ok := l.(unilogger.LevelSetter); ok {
		setter.SetLevel(LDEBUG3)
	}
}

// Logger returns the current destination logger.
func Logger() unilogger.LeveledLogger {
	std.RLock()
	defer std.RUnlock()
	return std.logger
}

// ParseLevel parses the level from its case insensitive name i.e. 'debug2'.
// Unknown names result in LUNKNOWN.
func ParseLevel(name string) unilogger.Level {
	level, ok := levelNames[strings.ToLower(name)]
	if !ok {
		return LUNKNOWN
	}
	return level
}

// Level returns the global level.
func Level() unilogger.Level {
	return std.current()
}

// SetLevel sets the global level. The module loggers without their own level follow it.
func SetLevel(level unilogger.Level) error {
	if level == LUNKNOWN {
		return errors.Wrap(ErrUnknownLevel, "can't set unknown logger level")
	}
	std.Lock()
	std.level = level
	std.Unlock()
	return nil
}

// Debugf writes the formatted LDEBUG level log.
func Debugf(format string, args ...interface{}) {
	std.write(std.current(), LDEBUG, "", format, args)
}

// Debug2f writes the formatted LDEBUG2 level log.
func Debug2f(format string, args ...interface{}) {
	std.write(std.current(), LDEBUG2, "", format, args)
}

// Debug3f writes the formatted LDEBUG3 level log.
func Debug3f(format string, args ...interface{}) {
	std.write(std.current(), LDEBUG3, "", format, args)
}

// Infof writes the formatted LINFO level log.
func Infof(format string, args ...interface{}) {
	std.write(std.current(), LINFO, "", format, args)
}

// Warningf writes the formatted LWARNING level log.
func Warningf(format string, args ...interface{}) {
	std.write(std.current(), LWARNING, "", format, args)
}

// Errorf writes the formatted LERROR level log.
func Errorf(format string, args ...interface{}) {
	std.write(std.current(), LERROR, "", format, args)
}

// Panicf writes the formatted log and panics.
func Panicf(format string, args ...interface{}) {
	if l := Logger(); l != nil {
		l.Panicf(format, args...)
	}
	panic(fmt.Sprintf(format, args...))
}
