package main

import "github.com/oshokin/update-manifest/cmd/manifest-updater/cmd"

func main() {
	cmd.Execute()
}
