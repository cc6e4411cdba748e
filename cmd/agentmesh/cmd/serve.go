package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/habiliai/agentmesh"
	"github.com/habiliai/agentmesh/config"
	"github.com/habiliai/agentmesh/errors"
	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/habiliai/agentmesh/network"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/habiliai/agentmesh/internal/db"
)

func newServeCmd() *cobra.Command {
	flags := &struct {
		gatewayPort int
	}{}

	cmd := &cobra.Command{
		Use:   "serve [agent-file OR agent-files-dir ...]",
		Short: "Serve every agent, the built-in ones when no file is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}

			c := din.NewContainer(cmd.Context(), din.EnvProd)
			conf, err := din.GetT[*config.MeshConfig](c)
			if err != nil {
				return err
			}
			logger := din.MustGetT[*mylog.Logger](c)

			agents, err := loadAgents(args)
			if err != nil {
				return err
			}

			opts := []agentmesh.Option{
				agentmesh.WithLogger(logger),
				agentmesh.WithMeshConfig(conf),
				agentmesh.WithAgents(agents...),
			}
			if conf.TaskStoreDSN != "" {
				db, err := din.GetT[*gorm.DB](c)
				if err != nil {
					return err
				}
				opts = append(opts, agentmesh.WithDB(db))
			}

			mesh, err := agentmesh.New(opts...)
			if err != nil {
				return err
			}

			readiness := mesh.Start(cmd.Context())
			for _, st := range readiness.Agents {
				logger.Info("agent", slog.String("name", st.Name), slog.String("url", st.URL), slog.Bool("healthy", st.Healthy))
			}

			if flags.gatewayPort > 0 {
				orchestrators := mesh.Orchestrators()
				if len(orchestrators) == 0 {
					return errors.Wrapf(errors.ErrInvalidConfig, "the gateway needs an orchestrator agent")
				}
				client := network.NewRemoteAgentClient(
					network.WithClientLogger(logger),
					network.WithTimeouts(network.DefaultTimeouts().WithRequest(conf.OrchestratorDispatchTimeout())),
				)
				go serveGateway(cmd.Context(), logger, flags.gatewayPort, agentmesh.NewGatewayHandler(client, orchestrators[0].URL, logger))
			}

			<-cmd.Context().Done()
			logger.Info("shutting down")
			mesh.Wait()

			return nil
		},
	}

	cmd.Flags().IntVar(&flags.gatewayPort, "gateway-port", 0, "Serve a plain HTTP gateway to the orchestrator on this port (0 disables it)")

	return cmd
}

func loadAgents(args []string) ([]config.AgentConfig, error) {
	if len(args) == 0 {
		return config.DefaultAgents()
	}

	files, err := config.ExpandAgentFiles(args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "no agent files found in %v", args)
	}

	return config.LoadAgentsFromFiles(files)
}

func serveGateway(ctx context.Context, logger *mylog.Logger, port int, handler http.Handler) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handlers.RecoveryHandler(handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))(handler),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown gateway", mylog.Err(err))
		}
	}()

	logger.Info("gateway started", slog.Int("port", port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("gateway stopped", mylog.Err(err))
	}
}
