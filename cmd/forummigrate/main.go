package main

import (
	"context"
	"forummigrate/cmd/forummigrate/commands"
	"forummigrate/lib/configutil"
	"forummigrate/lib/serviceutil"
)

func main() {
	configutil.LoadDotenv(".env")
	ctx := serviceutil.SignalContext(context.Background())
	commands.ExecuteContext(ctx)
}
