// Package restapi exposes the file service over HTTP.
//
// Routes:
//
//	GET    /api/v1/health
//	GET    /api/v1/files/info?path=&sha1=
//	DELETE /api/v1/files?path=
//	GET    /api/v1/files/content?path=&sha1=
//	PUT    /api/v1/files/content?path=
//	GET    /api/v1/transfers?limit=&offset=
//
// Failures carry a JSON body {"error": ..., "status": ...} where status is
// the protocol status name.
package restapi
