package main

import "github.com/martinriedel/smartmeter/cmd/smartmeter-packager/cmd"

func main() {
	cmd.Execute()
}
