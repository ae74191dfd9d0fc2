package main

import (
	"github.com/C0kke/FitFashion/pkg/orders/cmd"
)

func main() {
	cmd.Execute()
}
