package main

import "github.com/IamTheCarl/psu/cmd"

func main() {
	cmd.Execute()
}
