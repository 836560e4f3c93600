// Command adtctl inspects and edits the twins of an Azure Digital Twins
// instance from the command line.
//
// The instance and the service principal to authenticate as are configured by
// the environment:
//
//	AZURE_TENANT_ID        directory (tenant) of the service principal
//	AZURE_CLIENT_ID        application (client) ID of the service principal
//	AZURE_CLIENT_SECRET    client secret of the service principal
//	AZURE_ADT_URL          instance endpoint, e.g. https://x.api.weu.digitaltwins.azure.net
//	AZURE_ADT_API_VERSION  optional data-plane API version
//
// Variables may also be loaded from a dotenv file with --env-file.
//
// Usage:
//
//	adtctl list
//	adtctl upsert Room3 --model 'dtmi:example:Room;1' --set Temperature=60
//	adtctl update Room3 --add Humidity=20 --replace Temperature=42 --remove Occupied
//	adtctl delete Room3 Room4
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultEnv()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "adtctl:", err)
		stop()
		os.Exit(1)
	}
}
