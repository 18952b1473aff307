package main

import (
	"log"

	"github.com/sjzar/xivlauncher/cmd/xivlauncher"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	xivlauncher.Execute()
}
