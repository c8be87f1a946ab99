// Package docorm is the document-relational mapper persistence core. The documents of the
// schema defined models are saved and deleted along with their related documents, over
// a pluggable repository.
// It consists of the following packages:
// - config - contains the configurations for all packages, read with viper.
// - errors - the error classification system used by all the packages.
// - log - is the logging interface based on the uni-logger.
// - namer - the table and link column naming conventions.
// - mapping - contains the model definitions, their schema fields and relationships.
// - document - the documents, their back references, projection and validation.
// - repository - the repository interface with the 'memory' and 'badger' drivers
//	and the mock repositories used in tests.
// - database - saves, deletes and purges the document graphs and keeps
//	the documents in sync with the change feeds.
package docorm
