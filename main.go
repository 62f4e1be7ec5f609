package main

import "github.com/ewastehub/apiserver/cmd"

func main() {
	cmd.Execute()
}
