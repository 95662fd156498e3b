// Package shareapi uploads packaged beatmap archives to the share server.
//
// The client streams a multipart body containing the archive and the
// requested expiry to POST <base>/api/v1/shares and decodes the share
// record the server returns. The base URL can be swapped at runtime after
// endpoint resolution.
package shareapi
