package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a request body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Envelope is the compile request payload.
type Envelope struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName"`

	ContentType       string `json:"-"`
	DocumentSizeBytes int    `json:"-"`
}

// DecodeEnvelope extracts the query and operation name from a GET query
// string, an application/graphql body or a JSON body.
func DecodeEnvelope(r *http.Request, maxBodyBytes int64) (Envelope, error) {
	if r == nil {
		return Envelope{}, errors.New("request is nil")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	env := Envelope{ContentType: r.Header.Get("Content-Type")}

	if r.Method == http.MethodGet {
		env.Query = r.URL.Query().Get("query")
		env.OperationName = r.URL.Query().Get("operationName")
		env.DocumentSizeBytes = len(env.Query)
		return env, nil
	}
	if r.Body == nil {
		return env, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return env, fmt.Errorf("read request body: %w", err)
	}
	if int64(len(body)) > maxBodyBytes {
		return env, ErrBodyTooLarge
	}

	mediaType, _, parseErr := mime.ParseMediaType(env.ContentType)
	if parseErr != nil || mediaType == "" {
		mediaType = strings.TrimSpace(env.ContentType)
	}

	switch mediaType {
	case "application/graphql":
		env.Query = string(body)
	default:
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			break
		}
		var payload Envelope
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return env, fmt.Errorf("decode request body: %w", err)
		}
		env.Query = payload.Query
		env.OperationName = payload.OperationName
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, nil
}
