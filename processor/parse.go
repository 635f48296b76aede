package processor

import (
	"bytes"
	"encoding/xml"
	"strings"
	"unicode/utf8"

	"entsoeflow/models"
)

// ParseDocument decodes an ENTSO-E XML body. Malformed XML yields a parse
// error; a well-formed document without TimeSeries (an acknowledgement)
// yields a server error carrying the upstream reason when one is present.
func ParseDocument(body []byte) (*models.MarketDocument, error) {
	var doc models.MarketDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, models.NewParseError("XML parse error: "+err.Error(), nil)
	}
	if len(doc.TimeSeries) == 0 {
		if msg := ExtractMessage(body); msg != "" {
			return nil, models.NewServerError("ENTSO-E error: "+msg, 502, map[string]interface{}{
				"entsoe_message": msg,
			})
		}
		return nil, models.NewServerError("No TimeSeries found.", 502, nil)
	}
	return &doc, nil
}

// ExtractMessage returns the first non-empty text element of body, falling
// back to the first Message element. It returns "" when neither exists or
// the body is not XML.
func ExtractMessage(body []byte) string {
	if msg := firstElementText(body, "text"); msg != "" {
		return msg
	}
	return firstElementText(body, "Message")
}

func firstElementText(body []byte, local string) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	depth := 0
	var buf strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
			} else if t.Name.Local == local {
				depth = 1
				buf.Reset()
			}
		case xml.CharData:
			if depth > 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if s := strings.TrimSpace(buf.String()); s != "" {
					return s
				}
			}
		}
	}
}

// ErrorDetail is the upstream reason used in non-200 error messages: the
// extracted message, or the first 200 bytes of the body.
func ErrorDetail(body []byte) string {
	if msg := ExtractMessage(body); msg != "" {
		return msg
	}
	if len(body) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return string(body)
}
