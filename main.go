package main

import "github.com/racelogger/laptimer-go/cmd"

func main() {
	cmd.Execute()
}
