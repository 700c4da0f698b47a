package main

import "github.com/martinriedel/smartmeter/cmd/smartmeter-daemon/cmd"

func main() {
	cmd.Execute()
}
