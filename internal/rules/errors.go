package rules

import "fmt"

// ConfigError reports a malformed rule document. It is fatal at load time.
type ConfigError struct {
	Doc  string // Document path
	Path string // Location inside the document (e.g. "[2].steps[0].action")
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config %s: %v", e.Doc, e.Err)
	}
	return fmt.Sprintf("config %s: %s: %v", e.Doc, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(doc, path, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Doc: doc, Path: path, Err: fmt.Errorf(format, args...)}
}
