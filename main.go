package main

import "github.com/encodeous/vrouter/cmd"

func main() {
	cmd.Execute()
}
