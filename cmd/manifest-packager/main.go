package main

import "github.com/oshokin/update-manifest/cmd/manifest-packager/cmd"

func main() {
	cmd.Execute()
}
