// Command token mints bearer tokens for the management API: tenant-scoped
// tokens for operator tooling and cross-tenant service tokens for internal
// schedulers.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"

	"github.com/remindly/reminder-api/pkg/auth"
)

type tokenEnv struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

func main() {
	tenant := flag.String("tenant", "", "tenant id to scope the token to")
	service := flag.Bool("service", false, "mint a cross-tenant service token")
	expiry := flag.Int("expiry", 0, "token lifetime in hours")
	flag.Parse()

	var env tokenEnv
	if err := envconfig.Process("", &env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	jwtSvc := auth.NewJWTService(env.JWTSecret, *expiry)

	var (
		token string
		err   error
	)
	switch {
	case *service:
		token, err = jwtSvc.GenerateServiceToken()
	case *tenant != "":
		tenantID, parseErr := uuid.Parse(*tenant)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "invalid tenant id: %v\n", parseErr)
			os.Exit(1)
		}
		token, err = jwtSvc.GenerateTenantToken(tenantID)
	default:
		fmt.Fprintln(os.Stderr, "either -tenant or -service is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(token)
}
