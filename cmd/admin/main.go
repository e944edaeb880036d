package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/workflow/internal/admin"
)

func main() {
	cmd := admin.NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
