package main

import "faceid/cmd"

func main() {
	cmd.Execute()
}
