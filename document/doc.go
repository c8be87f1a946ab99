/*
Package document contains the live documents of the registered models.

A Document is a mutable mapping from the field name to the value, with the private
metadata kept aside: the saved flag, the last persisted snapshot, the attached relation
documents and the back references of the parents pointing at it. The package provides
also the savable copy projection and the validation of the documents.
*/
package document

import (
	"github.com/neuronlabs/docorm/log"
)

var logger = log.NewModuleLogger("document")
