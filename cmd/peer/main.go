package main

import "github.com/hilthontt/rendezvous/cmd/peer/cmd"

func main() {
	cmd.Execute()
}
