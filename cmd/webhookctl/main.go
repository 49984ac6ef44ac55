// Command webhookctl signs, verifies and sends webhook deliveries.
package main

import (
	"os"

	"github.com/Priya8975/webhook-notifier/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
