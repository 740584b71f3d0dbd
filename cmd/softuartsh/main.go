package main

import "github.com/sparques/softuart/internal/sh"

func main() {
	sh.Main()
}
