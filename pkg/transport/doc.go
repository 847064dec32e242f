// Package transport moves file-transfer messages between client and
// server over one of three modes:
//
//   - uds (default): a Unix domain socket named <app>.sock, or
//     <app>-<id>.sock, in ~/.conn. The directory is created with mode
//     0700. Startup fails when the socket file already exists, and the
//     file is removed on shutdown.
//   - insecure: plain TCP. The server logs a warning at startup.
//   - mtls: TCP with TLS 1.3 and client certificates required on both
//     ends. The server reads server.crt, server.key and ca.crt from the
//     certificates directory, the client reads client.crt, client.key and
//     ca.crt.
//
// TCP modes bind to localhost or 127.0.0.1 unless remote hosts are
// allowed explicitly.
//
// On every mode a message is one CBOR item preceded by its length as a
// 4-byte big-endian integer (see Framer). The server runs one goroutine
// per connection and hands its requests to a Handler.
package transport
