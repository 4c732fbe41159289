// Package notify defines the core domain model of the notification engine:
// intents, persisted records, the closed channel/category/priority/status
// enumerations and the record storage contract.
//
// An Intent is the logical request to notify a user, constructed by an
// originating collaborator. The dispatch coordinator routes it, persists a
// Record and fans delivery out across channels; the Record is the unit the
// engine owns afterwards.
//
// Storage is pluggable through the RecordStore interface. MemoryRecordStore
// is provided for development and testing; a PostgreSQL implementation lives
// in pkg/storage/pg.
package notify
