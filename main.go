package main

import "mcz2osz/cmd"

func main() {
	cmd.Execute()
}
