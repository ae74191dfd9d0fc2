package main

import (
	"github.com/C0kke/FitFashion/pkg/products/cmd"
)

func main() {
	cmd.Execute()
}
