package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	errx "github.com/emori-agent/server/internal/core/error"
	logx "github.com/emori-agent/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

// Decode extracts and unmarshals the JSON payload of a model response into T.
// Model output is messy: fenced code blocks, leading prose, trailing commas,
// unquoted keys. Decode strips the wrapping, tries strict unmarshalling and
// falls back to jsonrepair before giving up.
func Decode[T any](content string) (out *T, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("json parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "json_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	payload := extractJSON(content)
	if payload == "" {
		return nil, fmt.Errorf("no JSON payload found: %s", safeSnippet(content))
	}

	var v T
	if uerr := json.Unmarshal([]byte(payload), &v); uerr == nil {
		return &v, nil
	}

	repaired, rerr := jsonrepair.JSONRepair(payload)
	if rerr != nil {
		return nil, fmt.Errorf("repair JSON payload: %w", rerr)
	}
	if uerr := json.Unmarshal([]byte(repaired), &v); uerr != nil {
		return nil, fmt.Errorf("unmarshal repaired payload: %w", uerr)
	}
	logx.Debug().Str("component", "json_parser").Msg("payload repaired before unmarshal")
	return &v, nil
}

// extractJSON pulls the JSON document out of a model response: fenced block
// content when present, otherwise the outermost {...} or [...] segment.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)

	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		} else {
			s = strings.TrimSpace(rest)
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		// leave a truncated document to the repair pass
		return s[start:]
	}
	return s[start : end+1]
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
