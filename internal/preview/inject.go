package preview

import (
	"bytes"
	_ "embed"
	"strconv"
	"strings"
)

//go:embed relay.js
var relayJS string

// relayScript returns the relay script tag bound to a session.
func relayScript(sessionID string) string {
	return "\n<script data-le-relay>\nwindow.__LIVEDIT_SESSION__ = " + strconv.Quote(sessionID) + ";\n" +
		relayJS + "</script>\n"
}

// InjectRelay adds the relay script to an HTML page, preferring the head.
func InjectRelay(body []byte, sessionID string) []byte {
	script := []byte(relayScript(sessionID))

	// Try to inject before </head>
	if idx := bytes.Index(body, []byte("</head>")); idx != -1 {
		return insertAt(body, idx, script)
	}

	// Try to inject after <head>
	if idx := bytes.Index(body, []byte("<head>")); idx != -1 {
		return insertAt(body, idx+len("<head>"), script)
	}

	// Try to inject after the opening <body ...> and then <html ...>
	for _, tag := range [][]byte{[]byte("<body"), []byte("<html")} {
		if idx := bytes.Index(body, tag); idx != -1 {
			if end := bytes.IndexByte(body[idx:], '>'); end != -1 {
				return insertAt(body, idx+end+1, script)
			}
		}
	}

	// Last resort: prepend
	return insertAt(body, 0, script)
}

func insertAt(body []byte, at int, script []byte) []byte {
	result := make([]byte, 0, len(body)+len(script))
	result = append(result, body[:at]...)
	result = append(result, script...)
	result = append(result, body[at:]...)
	return result
}

// ShouldInject determines if the relay should be injected based on content type.
func ShouldInject(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html")
}
