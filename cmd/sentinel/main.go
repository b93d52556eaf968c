package main

import (
	"sentinel/cmd/sentinel/cmd"
	"sentinel/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
