package main

import "github.com/Noovolari/leapp-sub001/cmd"

func main() {
	cmd.Execute()
}
