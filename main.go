package main

import "github.com/kpelzel/kinet/cmd"

func main() {
	cmd.Execute()
}
