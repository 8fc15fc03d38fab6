package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeq/internal/engine"
)

func TestLoadModel(t *testing.T) {
	result, loadErr := LoadModel(shopModel)
	require.Nil(t, loadErr)
	assert.Equal(t, 1, result.FileCount)

	customer, ok := result.Model.Entity("Customer")
	require.True(t, ok)
	assert.Equal(t, "customers", customer.Table)
}

func TestLoadModelErrors(t *testing.T) {
	empty := t.TempDir()

	floaty := t.TempDir()
	writeFile(t, floaty, "bad.cue", "package bad\n\nentity: A: {\n\tkey: [\"Id\"]\n\tproperties: {Id: int, Price: float}\n}\n")

	keyless := t.TempDir()
	writeFile(t, keyless, "bad.cue", "package bad\n\nentity: A: {\n\tproperties: {Id: int}\n}\n")

	file := writeFile(t, t.TempDir(), "model.cue", "package x\n")

	tests := []struct {
		name    string
		dir     string
		code    string
		message string
	}{
		{"missing", filepath.Join(empty, "nope"), ErrCodeNotFound, "model directory not found"},
		{"not_a_directory", file, ErrCodeNotFound, "not a directory"},
		{"no_files", empty, ErrCodeNoFiles, "no CUE files"},
		{"float_type", floaty, ErrCodeInvalidType, "float types are forbidden"},
		{"missing_key", keyless, ErrCodeKey, "key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, loadErr := LoadModel(tt.dir)
			assert.Nil(t, result)
			require.NotNil(t, loadErr)
			assert.Equal(t, tt.code, loadErr.Code)
			assert.Contains(t, loadErr.Message, tt.message)
		})
	}
}

func TestLoadErrorPosition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", "package bad\n\nentity: A: {\n\tkey: [\"Id\"]\n\tproperties: {Id: int, Price: float}\n}\n")

	_, loadErr := LoadModel(dir)
	require.NotNil(t, loadErr)
	require.True(t, loadErr.Pos.IsValid())
	assert.Contains(t, loadErr.Error(), "bad.cue:5:")
	assert.Contains(t, loadErr.Error(), "E104")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package m\n")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "b.cue", "package other\n")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue")}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"entity":     ErrCodeEntity,
		"key":        ErrCodeKey,
		"properties": ErrCodeProperties,
		"type":       ErrCodeInvalidType,
		"cue":        ErrCodeBuildFailed,
		"other":      ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}

func TestMapQueryErrorCode(t *testing.T) {
	tests := []struct {
		code engine.QueryErrorCode
		want string
	}{
		{engine.ErrCodeUnknownEntity, ErrCodeUnknownEntity},
		{engine.ErrCodeUnknownSource, ErrCodeUnknownSource},
		{engine.ErrCodeInvalidQuery, ErrCodeInvalidQuery},
		{engine.ErrCodeShapeFailed, ErrCodeShapeFailed},
		{engine.ErrCodeCancelled, ErrCodeCancelled},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := fmt.Errorf("run: %w", &engine.QueryError{Code: tt.code, Message: "x"})
			assert.Equal(t, tt.want, MapQueryErrorCode(err))
		})
	}
	assert.Equal(t, ErrCodeGeneric, MapQueryErrorCode(errors.New("plain")))
}
