// Package logger provides structured key/value logging over the standard
// library logger.
package logger

import (
	"encoding/json"
	"log"
)

type Fields map[string]any

func Info(message string, fields Fields) {
	log.Printf("INFO %s %s", message, fieldsJSON(fields))
}

func Warn(message string, fields Fields) {
	log.Printf("WARN %s %s", message, fieldsJSON(fields))
}

func Error(message string, err error, fields Fields) {
	base := Fields{}
	for k, v := range fields {
		base[k] = v
	}
	if err != nil {
		base["error"] = err.Error()
	}

	log.Printf("ERROR %s %s", message, fieldsJSON(base))
}

func fieldsJSON(fields Fields) string {
	if fields == nil {
		fields = Fields{}
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return `{}`
	}

	return string(b)
}
