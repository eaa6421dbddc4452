// Package news holds the static news feed served next to the manifest.
package news
