// Package log is the docorm logging package used by all the other packages.
//
// The messages are written to a 'github.com/neuronlabs/uni-logger' LeveledLogger, set with
// SetLogger, New or Default. When the logger implements the DebugLeveledLogger interface the
// debug2 and debug3 levels are written with their own methods.
//
// Each package registers its ModuleLogger, i.e. the 'database' package logs the cascade
// steps of the save and delete orchestrators with the Debug2 and Debug3 levels. A module
// logger follows the global level unless its own level is set with SetModuleLevel.
package log
