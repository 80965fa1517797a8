package main

import "github.com/cerberussg/historian/cmd"

func main() {
	cmd.Execute()
}
