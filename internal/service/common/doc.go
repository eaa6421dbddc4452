// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the manifest service with
// per-call timeouts.
//
//nolint:revive,nolintlint // Package common holds the shared gRPC client.
package common
