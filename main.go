package main

import "github.com/KaramelBytes/tabscan/cmd"

func main() {
	cmd.Execute()
}
