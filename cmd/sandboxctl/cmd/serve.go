package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/session"
	"github.com/sandboxy-go/sandboxy/internal/web"
)

// defaultSessionTTL applies when SESSION_TTL_MINUTES is unset, matching
// the teacher's cmd/omega/main.go default session lifetime.
const defaultSessionTTL = 30 * time.Minute

func sessionTTLFromEnv() time.Duration {
	ttl := defaultSessionTTL
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Minute
		} else {
			fmt.Fprintf(os.Stderr, "warning: ignoring invalid SESSION_TTL_MINUTES=%q\n", v)
		}
	}
	return ttl
}

var serveModulesDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive session WebSocket API (C8) and /metrics",
	Long: `serve starts the WebSocket transport over the Session Manager
(spec.md §6): a start frame names a module_id resolved by filename
(<dir>/<module_id>.yaml) under --modules-dir, and an agent_id resolved
the same way as "sandboxctl run --agent".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("sandboxy session server")
		fmt.Printf("modules dir: %s\n", serveModulesDir)

		manager := session.NewManagerWithTTL(sessionTTLFromEnv())
		defer manager.Close()
		modules := func(moduleID string) (*mdl.Module, error) {
			path := filepath.Join(serveModulesDir, moduleID+".yaml")
			module, err := mdl.Load(path)
			if err != nil {
				return nil, fmt.Errorf("load module %q: %w", moduleID, err)
			}
			if errs := mdl.Validate(module); len(errs) > 0 {
				return nil, fmt.Errorf("module %q failed validation", moduleID)
			}
			return module, nil
		}

		srv := web.NewServer(manager, modules, resolveAgent, promhttp.Handler())
		return srv.Start()
	},
}

func init() {
	cwd, _ := os.Getwd()
	serveCmd.Flags().StringVar(&serveModulesDir, "modules-dir", filepath.Join(cwd, "modules"), "directory of <module_id>.yaml module documents")
}
