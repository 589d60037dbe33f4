package main

import "github.com/liveline-bot/liveline/cmd"

func main() {
	cmd.Execute()
}
