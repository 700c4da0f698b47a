package main

import "github.com/martinriedel/smartmeter/cmd/smartmeter-install/cmd"

func main() {
	cmd.Execute()
}
