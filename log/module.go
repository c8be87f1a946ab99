package log

import (
	"sort"
	"sync/atomic"

	"github.com/neuronlabs/uni-logger"
)

// ModuleLogger writes the logs of a single package, prefixed with the module name.
// It may have its own level, otherwise it follows the global level.
type ModuleLogger struct {
	name   string
	prefix string
	level  int32
}

// NewModuleLogger gets the module logger registered for 'name' or creates a new one.
func NewModuleLogger(name string) *ModuleLogger {
	std.Lock()
	defer std.Unlock()
	if m, ok := std.modules[name]; ok {
		return m
	}
	m := &ModuleLogger{name: name, prefix: "[" + name + "] ", level: int32(LUNKNOWN)}
	std.modules[name] = m
	return m
}

// Modules lists the names of the registered module loggers.
func Modules() []string {
	std.RLock()
	defer std.RUnlock()
	names := make([]string, 0, len(std.modules))
	for name := range std.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetModuleLevel sets the level of the module logger with given 'name'. The module logger is created
// if it doesn't exist yet, so the level could be set before the package registers it.
// LUNKNOWN level makes the module follow the global level again.
func SetModuleLevel(name string, level unilogger.Level) {
	NewModuleLogger(name).SetLevel(level)
}

// Name returns the module name.
func (m *ModuleLogger) Name() string {
	return m.name
}

// Level gets the level the module writes with.
func (m *ModuleLogger) Level() unilogger.Level {
	if level := unilogger.Level(atomic.LoadInt32(&m.level)); level != LUNKNOWN {
		return level
	}
	return std.current()
}

// SetLevel sets the module own level.
func (m *ModuleLogger) SetLevel(level unilogger.Level) {
	atomic.StoreInt32(&m.level, int32(level))
}

// IsAllowed checks if the module would write logs on given 'level'.
func (m *ModuleLogger) IsAllowed(level unilogger.Level) bool {
	return level >= m.Level()
}

// Debug3f writes the formatted debug3 log.
func (m *ModuleLogger) Debug3f(format string, args ...interface{}) {
	std.write(m.Level(), LDEBUG3, m.prefix, format, args)
}

// Debug2f writes the formatted debug2 log.
func (m *ModuleLogger) Debug2f(format string, args ...interface{}) {
	std.write(m.Level(), LDEBUG2, m.prefix, format, args)
}

// Debugf writes the formatted debug log.
func (m *ModuleLogger) Debugf(format string, args ...interface{}) {
	std.write(m.Level(), LDEBUG, m.prefix, format, args)
}

// Infof writes the formatted info log.
func (m *ModuleLogger) Infof(format string, args ...interface{}) {
	std.write(m.Level(), LINFO, m.prefix, format, args)
}

// Warningf writes the formatted warning log.
func (m *ModuleLogger) Warningf(format string, args ...interface{}) {
	std.write(m.Level(), LWARNING, m.prefix, format, args)
}

// Errorf writes the formatted error log.
func (m *ModuleLogger) Errorf(format string, args ...interface{}) {
	std.write(m.Level(), LERROR, m.prefix, format, args)
}
