package main

import "github.com/kozaktomas/photo-indexer/cmd"

func main() {
	cmd.Execute()
}
