// Package history keeps a SQLite record of finished downloads, uploads and
// deletes. Store implements filetransfer.Recorder, so the server hands it
// to the file service and exposes its content through the REST interface.
package history
