package main

import (
	"log"

	"mintgram/services/appgw"
)

func main() {
	if err := appgw.Main(); err != nil {
		log.Fatalf("appgw: %v", err)
	}
}
