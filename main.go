package main

import "github.com/sulphurninja/oceanlinux-sub002/cmd"

func main() {
	cmd.Execute()
}
