// Package snapshot serves a frozen, read-only copy of the audio index for
// contexts that render ahead of time and must not query live stores.
//
// Reader loads the exported file once per process and answers every call
// from memory. Export writes that file from any live lister using the same
// layout as the index cache, so either file can stand in for the other.
package snapshot
