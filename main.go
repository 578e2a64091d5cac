package main

import "github.com/khanhnv2901/phishrisk/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
