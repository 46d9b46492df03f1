// Command audioindex manages the audio recordings behind the dictionary.
//
// It uploads, lists and deletes recordings through the same service the web
// application uses, exports the build-time snapshot, and repairs or checks
// the index file. The backend (local or production) comes from the config
// file selected with --config.
package main
