// Package cert generates and loads the X.509 material used by the mTLS
// transport mode.
//
// A certificates directory holds:
//
//	ca.crt, ca.key          signing CA
//	server.crt, server.key  server leaf (ServerAuth)
//	client.crt, client.key  client leaf (ClientAuth)
//
// Keys are ECDSA P-256 in PKCS#8 PEM; SEC 1 keys are accepted on read.
package cert
