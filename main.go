package main

import (
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/cmd"
	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Execute()
}
