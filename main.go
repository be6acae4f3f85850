package main

import "wisher/cmd"

func main() {
	cmd.Execute()
}
