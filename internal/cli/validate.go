package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/minipaint/internal/auth"
	"github.com/fpang/minipaint/internal/filehandler"
)

// ValidateImagePath checks that path is a readable file with a supported
// image extension and returns the absolute path.
func ValidateImagePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("image not found: %s", path)
		}
		return "", fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not an image", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := filehandler.SupportedImageExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// DescribeValidationError turns an API key failure into advice for the user.
func DescribeValidationError(err error) string {
	if errors.Is(err, auth.ErrNoAPIKey) {
		return "Nenhuma chave de API configurada. Defina GEMINI_API_KEY ou apiKey no arquivo de configuração."
	}
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "Erro inesperado ao validar a chave de API: " + err.Error()
	}
	switch validationErr.Type {
	case auth.ErrTypeInvalidKey:
		return "Chave de API inválida. Verifique a chave e tente novamente."
	case auth.ErrTypeNetworkError:
		return "Erro de rede. Verifique sua conexão com a internet."
	case auth.ErrTypeQuotaExceeded:
		return "Cota da API excedida. Tente novamente mais tarde ou verifique seus limites de uso."
	default:
		return "Falha ao validar a chave de API: " + validationErr.Message
	}
}
