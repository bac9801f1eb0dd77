package xcbconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 文件格式。
type Format string

// 支持的格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DetectFormat 根据文件扩展名检测格式。
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// readFile 读取文件并检测格式。
func readFile(path string) ([]byte, Format, error) {
	if path == "" {
		return nil, "", ErrEmptyPath
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return data, format, nil
}

// decode 把 data 解析后反序列化到 target，空数据得到零值。
func decode(data []byte, format Format, target any) error {
	parser, err := parserFor(format)
	if err != nil {
		return err
	}
	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}
