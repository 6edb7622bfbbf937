// Package bookmark holds the domain model of the bookmark service: the
// Bookmark record, the collaborator interfaces the service depends on
// (repository, blob store, fetcher, capture pipeline, publisher, clock) and
// the Service that coordinates creation, edits and cascading deletes.
//
// Concrete adapters live elsewhere (internal/storage/*, internal/fetcher/*,
// internal/capture, internal/publisher/*); this package must not import
// database drivers or cloud SDKs.
package bookmark
