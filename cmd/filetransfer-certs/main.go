// Command filetransfer-certs writes a self-signed CA plus server and client
// certificates for running filetransfer-server in mtls mode.
//
// Usage:
//
//	filetransfer-certs [flags]
//
// The directory defaults to $ANSYS_GRPC_CERTIFICATES, else "certs", which is
// where the server and client look for certificates.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/filetransfer-tool/filetransfer-go/pkg/cert"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func defaultDir() string {
	if dir := os.Getenv(transport.CertsDirEnv); dir != "" {
		return dir
	}
	return transport.DefaultCertsDir
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("filetransfer-certs", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", defaultDir(), "Output directory")
	hosts := fs.StringSlice("host", cert.DefaultHosts, "Names and addresses for the server certificate")
	validity := fs.Duration("validity", cert.DefaultValidity, "Certificate lifetime")
	force := fs.Bool("force", false, "Overwrite existing certificates")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *validity <= 0 {
		fmt.Fprintln(stderr, "Error: --validity must be positive")
		return 2
	}

	err := cert.GenerateDir(*dir, cert.GenerateDirOptions{
		Hosts:     *hosts,
		Validity:  *validity,
		Overwrite: *force,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %s, %s and %s to %s (valid until %s)\n",
		cert.CAFile, cert.ServerCertFile, cert.ClientCertFile, *dir,
		time.Now().Add(*validity).Format(time.DateOnly))
	return 0
}
