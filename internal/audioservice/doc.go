// Package audioservice is the single entry point for storing, listing and
// deleting audio recordings.
//
// A Service is built once per process around one Backend. LocalBackend keeps
// blobs on disk and treats the index file as the only record store.
// ProductionBackend uploads blobs to S3, writes records to the primary
// database and mirrors them into the index file, which then serves reads
// while the database is unreachable.
package audioservice
