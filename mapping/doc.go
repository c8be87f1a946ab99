/*
Package mapping contains the models definitions: their tables, schema fields and
the relationships descriptors.

A relationship is bound to a single model field and has one of the kinds:
BelongsTo, HasOne, HasMany or ManyToMany. The kind fixes the foreign key ownership:
the 'belongs to' model stores the key by itself, the 'has one' and 'has many' related
models store the key, the 'many to many' link table rows store both keys.
*/
package mapping
