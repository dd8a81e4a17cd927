// Command couchreq administers a CouchDB server: listing and managing
// databases, running replications, and pushing design documents from
// couchapp-style directories.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/couchreq/couchreq"
	"github.com/couchreq/couchreq/resource"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "couchreq",
	Short: "CouchDB administration tool",
	Long: `couchreq talks to a CouchDB server over HTTP.

The server URL is taken from --server, the COUCHREQ_SERVER environment
variable, or the "server" key in ~/.couchreq.yaml, in that order of
precedence. Credentials may be embedded in the URL.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.couchreq.yaml)")
	flags.StringP("server", "s", "http://localhost:5984/", "CouchDB server URL")
	flags.Duration("timeout", resource.DefaultTimeout, "request timeout")
	flags.Int("pool-size", resource.DefaultPoolSize, "connection pool size")
	flags.Int("max-retries", resource.DefaultMaxRetries, "retries after a network error")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print each HTTP exchange to stderr")
	for _, name := range []string{"server", "timeout", "pool-size", "max-retries"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".couchreq")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("couchreq")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			cobra.CheckErr(err)
		}
	}
}

// cmdContext returns the command's context, with HTTP tracing attached
// when --verbose is set.
func cmdContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if !verbose {
		return ctx
	}
	return resource.WithClientTrace(ctx, &resource.ClientTrace{
		HTTPRequest: func(req *http.Request) {
			fmt.Fprintf(os.Stderr, "> %s %s\n", req.Method, req.URL)
		},
		HTTPResponse: func(res *http.Response) {
			fmt.Fprintf(os.Stderr, "< %s\n", res.Status)
		},
	})
}

func connect(ctx context.Context) (*couchreq.Server, error) {
	cfg := resource.Config{
		PoolSize:   viper.GetInt("pool-size"),
		Timeout:    viper.GetDuration("timeout"),
		MaxRetries: viper.GetInt("max-retries"),
	}
	return couchreq.NewWithConfig(ctx, viper.GetString("server"), cfg)
}
