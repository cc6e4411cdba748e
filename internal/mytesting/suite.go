package mytesting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/habiliai/agentmesh/internal/mylog"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
)

type Suite struct {
	suite.Suite
	context.Context

	Cancel context.CancelFunc
	Logger *mylog.Logger
}

func (s *Suite) SetupTest() {
	projectRoot, err := s.findProjectRoot()
	s.Require().NoError(err, "Failed to find project root")

	envFile := filepath.Join(projectRoot, ".env.test")
	if _, err := os.Stat(envFile); err == nil {
		s.Require().NoError(godotenv.Load(envFile))
	}

	s.Context, s.Cancel = context.WithCancel(context.TODO())
	s.Logger = mylog.NewLogger(os.Getenv("LOG_LEVEL"), "default")
}

func (s *Suite) TearDownTest() {
	s.Cancel()
}

// findProjectRoot searches for go.mod file starting from the current file location
func (s *Suite) findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("go.mod not found in any parent directory")
}

// FreePort asks the kernel for an unused TCP port on the loopback interface.
func (s *Suite) FreePort() int {
	port, err := FreePort()
	s.Require().NoError(err)
	return port
}
