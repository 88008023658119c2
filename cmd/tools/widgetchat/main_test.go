package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	personaID, verbose, showRule = "xiaoke", false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAskTuition(t *testing.T) {
	out, err := execute(t, "ask", "--show-rule", "学费多少")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[tuition]\n"))
	assert.Contains(t, out, "国际小学：每年8-10万元")
}

func TestAskFallback(t *testing.T) {
	out, err := execute(t, "ask", "-p", "jiaohaoyun", "--show-rule", "今天天气怎么样")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[fallback]\n"))
}

func TestAskUnknownWidget(t *testing.T) {
	_, err := execute(t, "ask", "-p", "nobody", "你好")
	assert.Error(t, err)
}

func TestRulesListsInOrder(t *testing.T) {
	out, err := execute(t, "rules", "-p", "jiaohaoyun")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 10)
	assert.Contains(t, lines[0], "timetable")
	assert.Contains(t, lines[3], "学院 & 介绍|历史")
	assert.Contains(t, lines[9], "fallback")
}

func TestUploadAcknowledges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "作业.txt")
	require.NoError(t, os.WriteFile(path, []byte("答案"), 0o600))

	out, err := execute(t, "upload", "-p", "jiaohaoyun", path)
	require.NoError(t, err)
	assert.Equal(t, "文件\"作业.txt\"上传成功！在实际应用中，这里会将文件发送到服务器进行处理。\n", out)

	_, err = execute(t, "upload", "-p", "xiaoke", path)
	assert.Error(t, err)
}
