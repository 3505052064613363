package main

// @title           Sercha RAG API
// @version         1.0
// @description     Permission-aware retrieval over folder-organised documents. Answers are built only from chunks the caller may read.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-rag/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"fmt"
	"os"

	"github.com/custodia-labs/sercha-rag/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
