package main

import (
	"context"

	"eam/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
