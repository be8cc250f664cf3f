package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orgs.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadOrganizationsCSV(t *testing.T) {
	t.Parallel()

	t.Run("header order does not matter", func(t *testing.T) {
		t.Parallel()
		path := writeCSV(t, "phone,name,address\n02-1234-5678,소망교회,서울시 강남구\n,은혜교회,\n")

		orgs, err := readOrganizationsCSV(path)
		require.NoError(t, err)
		require.Len(t, orgs, 2)
		assert.Equal(t, "소망교회", orgs[0].Name)
		assert.Equal(t, "02-1234-5678", orgs[0].Phone)
		assert.Equal(t, "서울시 강남구", orgs[0].Address)
		assert.Equal(t, "은혜교회", orgs[1].Name)
		assert.Empty(t, orgs[1].Phone)
	})

	t.Run("rows without a name are skipped", func(t *testing.T) {
		t.Parallel()
		path := writeCSV(t, "name,category\n소망교회,교회\n  ,교회\n")

		orgs, err := readOrganizationsCSV(path)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
	})

	t.Run("missing name column rejected", func(t *testing.T) {
		t.Parallel()
		path := writeCSV(t, "title,phone\n소망교회,02-1234-5678\n")

		_, err := readOrganizationsCSV(path)
		require.Error(t, err)
	})

	t.Run("unknown columns ignored", func(t *testing.T) {
		t.Parallel()
		path := writeCSV(t, "name,denomination,email\n소망교회,장로회,office@somang.net\n")

		orgs, err := readOrganizationsCSV(path)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
		assert.Equal(t, "office@somang.net", orgs[0].Email)
	})
}
