package main

import "github.com/gymdesk/gymdesk/cmd"

func main() {
	cmd.Execute()
}
