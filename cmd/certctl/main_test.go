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

const request = `{"body":"{\"recipient_name\":\"Jane Doe\",\"course_title\":\"Advanced Widgets\",\"tier_level\":3,\"completion_date\":\"2024-03-15\",\"user_id\":\"u1\",\"course_id\":\"c1\"}"}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CERTIFICATE_FORMAT", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderHTMLFromStdin(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "cert.html")
	out, err := run(t, request, "render", "--out", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "certificates/u1/c1/cert-CERT-")

	html, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Elite Program")
	assert.Contains(t, string(html), "Jane Doe")
}

func TestRenderPDFAndInspect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "req.json")
	require.NoError(t, os.WriteFile(in, []byte(request), 0o600))
	dst := filepath.Join(dir, "cert.pdf")

	_, err := run(t, "", "render", "--in", in, "--out", dst, "--format", "pdf")
	require.NoError(t, err)

	text, err := run(t, "", "inspect", dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "pages: 1\n--- page 1 ---\n"), text)
	assert.Contains(t, text, "Jane Doe")
}

func TestInspectRejectsNonPDF(t *testing.T) {
	src := filepath.Join(t.TempDir(), "cert.html")
	require.NoError(t, os.WriteFile(src, []byte("<html></html>"), 0o600))
	_, err := run(t, "", "inspect", src)
	assert.Error(t, err)
}

func TestRenderRejectsInvalidRequest(t *testing.T) {
	_, err := run(t, `{"recipient_name":"Jane Doe"}`, "render", "--out", filepath.Join(t.TempDir(), "x.html"))
	require.Error(t, err)
	assert.Equal(t, "Missing required fields: course_title, tier_level, completion_date, user_id, course_id", err.Error())
}

func TestListRequiresUserForCourse(t *testing.T) {
	_, err := run(t, "", "list", "--course", "c1")
	assert.EqualError(t, err, "--course requires --user")
}

func TestListPrefix(t *testing.T) {
	assert.Equal(t, "certificates/", listPrefix("", ""))
	assert.Equal(t, "certificates/u1/", listPrefix("u1", ""))
	assert.Equal(t, "certificates/u1/c1/", listPrefix("u1", "c1"))
}
