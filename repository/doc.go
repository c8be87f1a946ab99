// Package repository defines the narrow database interface used by the document
// save and delete operations, along with the driver factories.
// A repository stores the rows in the tables keyed by the primary key, replaces and
// deletes them in bulk by the secondary index and streams the row changes.
// Subpackages provide the 'memory' and 'badger' drivers and the mock repositories.
package repository
