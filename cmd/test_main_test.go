package cmd

import (
	"io"
	"os"
	"testing"

	"github.com/warpdl/warpcas/common"
)

func TestMain(m *testing.M) {
	for _, env := range []string{
		common.ConfigEnv, common.ListenEnv, common.RPCSecretEnv, common.ProxyEnv,
		common.DataDirEnv, common.DebugEnv, common.SessionKeyEnv, "WARPCAS_PASSWORD",
	} {
		_ = os.Unsetenv(env)
	}
	logOutput = io.Discard
	os.Exit(m.Run())
}
