// Package main provides the bookshare operator CLI.
package main

import "github.com/Arax734/bookshare-app-sub001/internal/cli"

func main() {
	cli.Execute()
}
