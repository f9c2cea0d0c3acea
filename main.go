package main

import "github/chapool/ledger-subprovider/cmd"

func main() {
	cmd.Execute()
}
