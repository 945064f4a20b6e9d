// Package shelfkeep implements the persistence core of a self-hosted book
// catalog with photographed cover images.
//
// The package is organized around two small storage contracts and one
// orchestrating service:
//
//   - BookRepo: metadata persistence for Book and Cover records
//     (JSON flat file, SQLite, or PostgreSQL)
//   - AssetStore: binary photo persistence (local disk or an S3-compatible
//     object store)
//   - LibraryService: sequences metadata and asset operations so that a
//     failure mid-operation never leaves a Cover record pointing at a
//     missing asset
//
// The ordering rule across all mutating operations: an asset is stored
// before the metadata record that references it is created, and a metadata
// record is removed before its backing asset is deleted. Failures therefore
// produce at worst an orphaned asset (wasted storage, logged and reclaimable
// out of band via the orphans command), never a dangling reference.
//
// See the database and filesystem/s3store packages for backend
// implementations and the http package for the REST shell.
package shelfkeep
