package main

import (
	"os"

	"github.com/clinickit/clinic-auth-api/internal/tools/obscheck"
)

func main() {
	if err := obscheck.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
