// # cmd/vinec/main.go
package main

import (
	"os"

	"vinec/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
