// Package log records what happens on every connection as a stream of
// typed events. It is separate from operational logging (slog): slog tells
// an operator what the server is doing, the event log is a complete,
// machine-readable trace that can be replayed later.
//
// Each Event carries one payload matching the layer that produced it:
//   - transport: raw frames (FrameEvent)
//   - wire: decoded requests and responses (MessageEvent)
//   - service: connection lifecycle (StateChangeEvent), finished
//     operations (TransferEvent) and failures (ErrorEventData)
//
// Producers take a Logger. A server typically writes to a file and,
// while debugging, echoes everything but raw frames to the console:
//
//	file, err := log.OpenFileLogger(path, log.FileLoggerOptions{OmitFrameData: true})
//	...
//	events := log.NewMultiLogger(file, log.Filtered{
//		Logger: log.NewSlogAdapter(slog.Default()),
//		Keep:   log.WithoutFrames,
//	})
//
// Files are CBOR sequences, conventionally named *.ftlog, and are read
// back with Reader or the filetransfer-log tool.
package log
