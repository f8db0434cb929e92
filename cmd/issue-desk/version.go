package main

// Set at build time through -ldflags "-X main.VERSION=... -X main.GITCOMMIT=..."
var (
	VERSION   = "v0.1.0"
	GITCOMMIT = ""
)
