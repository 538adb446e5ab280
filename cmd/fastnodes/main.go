package main

import (
	// Register Plugins via side-effects
	_ "fastnodes/internal/collectors/file"
	_ "fastnodes/internal/collectors/http"
	_ "fastnodes/internal/publishers/dir"
	_ "fastnodes/internal/publishers/github"
	_ "fastnodes/internal/publishers/stdout"
)

func main() {
	Execute()
}
