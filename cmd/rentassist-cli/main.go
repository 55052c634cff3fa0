package main

import (
	"rentassist-backend/cmd/rentassist-cli/commands"
	"rentassist-backend/lib/telemetry"
	"rentassist-backend/lib/util/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "rentassist-cli")
	telemetry.InstrumentPerfStats(ctx)
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
