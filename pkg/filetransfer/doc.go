// Package filetransfer implements the file operations offered by the
// server: file info, delete, chunked download and chunked upload.
//
// A Service resolves client-supplied names, optionally confined to a root
// directory, and reports failures as *Error values carrying a protocol
// status code. Both the stream protocol (package service) and the REST
// interface (package restapi) are built on it.
//
// # Downloads
//
// OpenDownload returns a Download that yields the file in chunks of the
// requested size. Every chunk carries the progress the client should
// report:
//
//	dl, err := svc.OpenDownload("data.bin", filetransfer.DownloadOptions{ChunkSize: 1 << 16})
//	for {
//		chunk, progress, err := dl.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//	dl.Finish(ctx, nil)
//
// # Uploads
//
// BeginUpload writes into a temporary file in the target directory. Commit
// checks the byte count and the optional SHA1 and renames the file into
// place, so a failed upload never leaves a partial target behind.
//
// # Recording
//
// Every finished download, upload and delete is passed to the optional
// Recorder, which the server backs with the transfer history database.
package filetransfer
