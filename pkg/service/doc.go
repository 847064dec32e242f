// Package service implements the server side of the file-transfer
// protocol on top of transport streams.
//
// A Handler serves each connection as a sequence of operations. Unary
// operations (Hello, GetFileInfo, DeleteFile) take one request and return
// one response. Streaming operations walk through steps, all frames
// sharing the MessageID of their Initialize request:
//
//	DownloadFile: Initialize -> {FileInfo, progress 0}
//	              ReceiveData -> one response per chunk
//	              Finalize -> progress 100
//
//	UploadFile:   Initialize{FileInfo} -> progress 0
//	              SendData{chunk} -> progress, once per chunk
//	              Finalize -> progress 100
//
// A wrong step fails the operation with INVALID_ARGUMENT. After an error
// response the remaining frames of the failed operation are discarded, so
// the client can simply continue with a new MessageID. A frame carrying a
// different MessageID in the middle of an operation ends that operation
// with "Request stream stopped prematurely." and is then served normally.
package service
