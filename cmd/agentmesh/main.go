package main

import (
	"github.com/habiliai/agentmesh/cmd/agentmesh/cmd"
)

func main() {
	cmd.Execute()
}
