/*
Package database contains the document persistence operations over the repository.

The Database saves the document graphs in the order required by the relation keys:
the 'belongs to' parents first, then the document itself, then its 'has one', 'has many'
and 'many to many' children and finally the link table rows. Deleting a document cascades
over its owned children or detaches them, and updates all the documents that point at it.
The cascade scope is set with the Cascade tree or by saving all the relations, in which
case each related table is visited at most once per call.
*/
package database

import (
	"github.com/neuronlabs/docorm/log"
)

var logger = log.NewModuleLogger("database")
