package main

import (
	"os"

	_ "github.com/databricks/databricks-sql-go"

	"github.com/charlieyou/ucmt/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
