package main

import (
	"github.com/C0kke/FitFashion/pkg/gateway/cmd"
)

func main() {
	cmd.Execute()
}
