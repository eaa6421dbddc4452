package main

import "github.com/oshokin/update-manifest/cmd/manifest-server/cmd"

func main() {
	cmd.Execute()
}
