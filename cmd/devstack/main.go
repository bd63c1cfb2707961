package main

import "github.com/Camiloez/postboard/internal/cli"

func main() {
	cli.Execute()
}
