package main

import (
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/cli"
)

func main() {
	cli.Execute()
}
