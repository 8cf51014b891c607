package main

import "github.com/dlmbl/labsetup/cmd/labsetup/cmd"

func main() {
	cmd.Execute()
}
