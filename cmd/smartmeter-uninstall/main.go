package main

import "github.com/martinriedel/smartmeter/cmd/smartmeter-uninstall/cmd"

func main() {
	cmd.Execute()
}
