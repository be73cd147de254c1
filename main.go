package main

import "github.com/kamusis/skillbase/cmd"

func main() {
	cmd.Execute()
}
