// Package wire defines the CBOR wire format of the file-transfer protocol.
//
// Every frame on a connection carries exactly one CBOR message encoded
// with integer keys and canonical key ordering. Frames are length-prefixed
// by the transport package.
//
// # Message Types
//
// There are two message types:
//   - Request: client to server (Hello, GetFileInfo, DeleteFile,
//     DownloadFile, UploadFile)
//   - Response: server to client (status, progress, file info, chunks)
//
// # Streaming Operations
//
// DownloadFile and UploadFile are streaming operations. All frames that
// belong to one invocation share a MessageID and carry a Step:
//
//	Download: Initialize -> ReceiveData -> Finalize
//	Upload:   Initialize -> SendData* -> Finalize
//
// Unary operations (Hello, GetFileInfo, DeleteFile) carry no step.
//
// # Chunk Encoding
//
// File chunks are sent either verbatim (EncodingIdentity) or zstd
// compressed (EncodingZstd). A chunk always records its uncompressed size.
package wire
