package main

import "PharmaChat/client/pharmacy-cli/cmd"

func main() {
	cmd.Execute()
}
