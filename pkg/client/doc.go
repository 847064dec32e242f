// Package client is the client side of the file-transfer protocol.
//
// Dial connects to a server endpoint (insecure TCP, Unix socket or mTLS,
// see package transport), exchanges versions and returns a Client:
//
//	c, err := client.Dial(ctx, ep, client.Options{})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	info, exists, err := c.GetFileInfo(ctx, "results.rst", true)
//	_, err = c.Download(ctx, "results.rst", "local.rst", client.TransferOptions{VerifySHA1: true})
//	err = c.Upload(ctx, "input.dat", "input.dat", client.TransferOptions{Encoding: wire.EncodingZstd})
//
// Failures reported by the server are returned as *filetransfer.Error, so
// callers can inspect the status with filetransfer.StatusOf.
package client
