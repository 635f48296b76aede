package processor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"entsoeflow/models"
)

const acknowledgement = `<?xml version="1.0" encoding="UTF-8"?>
<Acknowledgement_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-1:acknowledgementdocument:7:0">
  <mRID>abc</mRID>
  <Reason>
    <code>999</code>
    <text>No matching data found for Data item Day-ahead Prices</text>
  </Reason>
</Acknowledgement_MarketDocument>`

func TestParseDocumentAcknowledgement(t *testing.T) {
	_, err := ParseDocument([]byte(acknowledgement))
	e, ok := models.AsError(err)
	if !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
	if e.Code != models.CodeServerError || e.Status != 502 {
		t.Fatalf("unexpected error: %+v", e)
	}
	if !strings.HasPrefix(e.Message, "ENTSO-E error: No matching data") {
		t.Fatalf("unexpected message %q", e.Message)
	}
	if e.Details["entsoe_message"] != "No matching data found for Data item Day-ahead Prices" {
		t.Fatalf("unexpected details: %v", e.Details)
	}
}

func TestParseDocumentWithoutSeriesOrReason(t *testing.T) {
	_, err := ParseDocument([]byte(`<Publication_MarketDocument><mRID>1</mRID></Publication_MarketDocument>`))
	e, ok := models.AsError(err)
	if !ok || e.Message != "No TimeSeries found." {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseDocumentMalformed(t *testing.T) {
	_, err := ParseDocument([]byte("<html><body>oops"))
	e, ok := models.AsError(err)
	if !ok || e.Code != models.CodeParseError {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !strings.HasPrefix(e.Message, "XML parse error: ") {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestExtractMessageFallsBackToMessageElement(t *testing.T) {
	body := []byte(`<Error><Message>  invalid token  </Message></Error>`)
	if got := ExtractMessage(body); got != "invalid token" {
		t.Fatalf("ExtractMessage = %q", got)
	}
	if got := ExtractMessage([]byte("not xml")); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}

func TestErrorDetailTruncatesBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 500))
	if got := ErrorDetail(body); len(got) != 200 {
		t.Fatalf("expected 200 bytes, got %d", len(got))
	}
	if got := ErrorDetail([]byte(acknowledgement)); !strings.HasPrefix(got, "No matching data") {
		t.Fatalf("ErrorDetail = %q", got)
	}

	// "é" is two bytes and straddles the 200 byte limit.
	body = []byte(strings.Repeat("x", 199) + strings.Repeat("é", 10))
	got := ErrorDetail(body)
	if len(got) != 199 || !utf8.ValidString(got) {
		t.Fatalf("expected 199 valid bytes, got %d (valid=%v)", len(got), utf8.ValidString(got))
	}
}
