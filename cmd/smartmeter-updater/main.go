package main

import "github.com/martinriedel/smartmeter/cmd/smartmeter-updater/cmd"

func main() {
	cmd.Execute()
}
