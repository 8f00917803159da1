package main

import "github.com/vietddude/apiguard/internal/cli"

func main() {
	cli.Execute()
}
