package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultLang is the only locale the store ships today.
const DefaultLang = "es"

// Translator resolves user-facing texts by key. Fallback replies are built
// exclusively from these texts so they stay stable for a given locale.
type Translator struct {
	translations map[string]string
	preamble     string
}

// NewTranslator reads locales/<lang>.yaml and locales/preamble-<lang>.txt from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}

	preamblePath := path.Join("locales", fmt.Sprintf("preamble-%s.txt", langCode))
	preamble, err := fs.ReadFile(fsys, preamblePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read preamble file %s: %w", preamblePath, err)
	}
	t.preamble = string(preamble)
	return t, nil
}

// Default loads the embedded Spanish locale.
func Default() (*Translator, error) {
	return NewTranslator(LocalesFS, DefaultLang)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the text for key, formatted with args. Unknown keys come back verbatim.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Preamble is the system instruction for the language model, naming the store.
func (t *Translator) Preamble(store string) string {
	if t.preamble == "" {
		return t.T("preamble", store)
	}
	return fmt.Sprintf(t.preamble, store)
}
