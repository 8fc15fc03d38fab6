package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/shapeq/internal/engine"
	"github.com/roach88/shapeq/internal/model"
)

// LoadResult is a compiled model and what it was loaded from.
type LoadResult struct {
	Model     *model.Model
	Dir       string
	FileCount int
}

// LoadError is a coded CLI error with an optional CUE position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModel loads and compiles the CUE model in dir.
func LoadModel(dir string) (*LoadResult, *LoadError) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	m, err := model.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Model: m, Dir: dir, FileCount: len(files)}, nil
}

// FindCUEFiles returns the .cue files directly in dir. Subdirectories
// are separate CUE packages and are not part of the model.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func convertCompileError(err error) *LoadError {
	var compileErr *model.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants, shared by every command.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDatabase    = "E007" // Database open or write failed
	ErrCodeSchemaDrift = "E008" // Table created from a different entity definition

	// Model errors
	ErrCodeEntity      = "E101" // Malformed or missing entity
	ErrCodeKey         = "E102" // Missing or invalid key
	ErrCodeProperties  = "E103" // Missing properties
	ErrCodeInvalidType = "E104" // Unsupported property type

	// Expression and query errors
	ErrCodeExpression    = "E201" // Expression document invalid
	ErrCodeQueryDocument = "E202" // Query document invalid
	ErrCodeUnknownEntity = "E210"
	ErrCodeUnknownSource = "E211"
	ErrCodeInvalidQuery  = "E212"
	ErrCodeShapeFailed   = "E213"
	ErrCodeCancelled     = "E214"

	ErrCodeScenarioFailed = "E301" // One or more scenarios failed
)

// MapFieldToErrorCode maps a model compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "entity":
		return ErrCodeEntity
	case "key":
		return ErrCodeKey
	case "properties":
		return ErrCodeProperties
	case "type":
		return ErrCodeInvalidType
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}

// MapQueryErrorCode maps an engine error to an error code.
func MapQueryErrorCode(err error) string {
	switch {
	case engine.IsUnknownEntityError(err):
		return ErrCodeUnknownEntity
	case engine.IsUnknownSourceError(err):
		return ErrCodeUnknownSource
	case engine.IsInvalidQueryError(err):
		return ErrCodeInvalidQuery
	case engine.IsShapeError(err):
		return ErrCodeShapeFailed
	case engine.IsCancelledError(err):
		return ErrCodeCancelled
	default:
		return ErrCodeGeneric
	}
}
