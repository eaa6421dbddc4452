// Package config defines the settings used by the manifest binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Config names the published directory, the remote base URL and binary key
// written into the manifest, and the listen addresses of the server.
package config
