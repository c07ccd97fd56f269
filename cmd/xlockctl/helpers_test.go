package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const poolYAML = `
pool:
  resources:
    - name: printer-1
      labels: [printer]
      note: "2nd floor"
    - name: printer-2
      labels: [printer]
log:
  level: error
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCLI 运行命令并返回退出码与输出。
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"xlockctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}
