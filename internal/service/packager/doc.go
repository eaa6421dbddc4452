// Package packager builds the manifest once and writes it to disk or stdout.
//
// It is the offline counterpart of the server: the resulting JSON can be
// uploaded next to the files and served by any static web server.
package packager
