package models

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"testing"
)

func TestQuantityRowJSONUsesNamedField(t *testing.T) {
	row := QuantityRow{Position: 3, HourLocal: "2025-01-02 02:00", Field: FieldLoadMW, Value: 11234.5, Resolution: "PT60M"}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"position":3,"hour_local":"2025-01-02 02:00","load_mw":11234.5,"resolution":"PT60M"}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestGenerationRowNullPsrType(t *testing.T) {
	data, err := json.Marshal(GenerationRow{Position: 1, HourLocal: "2025-01-02 00:00", ProductionType: "UNKNOWN", ForecastMW: 1, Resolution: "PT60M"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := out["psr_type"]; !ok || v != nil {
		t.Fatalf("psr_type should be present and null, got %v", out)
	}
}

func TestDatasetMapping(t *testing.T) {
	cases := []struct {
		ds    Dataset
		doc   string
		field string
	}{
		{DatasetPrices, "A44", ""},
		{DatasetLoadForecast, "A65", FieldForecastMW},
		{DatasetLoadDayAhead, "A65", FieldLoadMW},
		{DatasetLoadActual, "A68", FieldLoadMW},
		{DatasetGenerationForecast, "A69", ""},
		{DatasetNetPosition, "A75", FieldNetPositionMW},
		{DatasetScheduledExchanges, "A01", FieldScheduledMW},
	}
	for _, c := range cases {
		if got := c.ds.DocumentType(); got != c.doc {
			t.Errorf("%s document type = %q, want %q", c.ds, got, c.doc)
		}
		if got := c.ds.QuantityField(); got != c.field {
			t.Errorf("%s field = %q, want %q", c.ds, got, c.field)
		}
	}
	if Dataset("bogus").Valid() {
		t.Fatalf("unknown dataset reported valid")
	}
}

func TestDocumentDecodesNestedPsrType(t *testing.T) {
	body := `<GL_MarketDocument xmlns="urn:iec62325.351:tc57wg16:451-6:generationloaddocument:3:0">
  <TimeSeries>
    <MktPSRType><psrType>B16</psrType></MktPSRType>
    <Period>
      <timeInterval><start>2025-01-01T23:00Z</start><end>2025-01-02T23:00Z</end></timeInterval>
      <resolution>PT60M</resolution>
      <Point><position>1</position><quantity>12</quantity></Point>
    </Period>
  </TimeSeries>
</GL_MarketDocument>`
	var doc MarketDocument
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.TimeSeries) != 1 {
		t.Fatalf("expected one series, got %d", len(doc.TimeSeries))
	}
	ts := doc.TimeSeries[0]
	if ts.PsrType() != "B16" {
		t.Fatalf("psr type = %q", ts.PsrType())
	}
	if len(ts.Periods) != 1 || ts.Periods[0].TimeInterval.Start != "2025-01-01T23:00Z" {
		t.Fatalf("unexpected period: %+v", ts.Periods)
	}
	if ts.Periods[0].Points[0].Quantity != "12" {
		t.Fatalf("unexpected point: %+v", ts.Periods[0].Points[0])
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		code   string
	}{
		{NewUnauthorized("", nil), 401, CodeUnauthorized},
		{NewForbidden("", nil), 403, CodeForbidden},
		{NewNotFound("", nil), 404, CodeNotFound},
		{NewRateLimited("", nil), 429, CodeRateLimited},
		{NewServerError("", 0, nil), 502, CodeServerError},
		{NewParseError("", nil), 500, CodeParseError},
		{NewClientError("HTTP 418", 418, nil), 418, CodeClientError},
		{NewValidationError(CodeInvalidDateFormat, "bad %s", "date"), 422, CodeInvalidDateFormat},
		{NewBadRequest("Unknown command: %s", "x"), 400, CodeBadRequest},
	}
	for _, c := range cases {
		if c.err.Status != c.status || c.err.Code != c.code {
			t.Errorf("%s: got %d/%s, want %d/%s", c.err.Message, c.err.Status, c.err.Code, c.status, c.code)
		}
	}

	wrapped := fmt.Errorf("fetch prices: %w", NewRateLimited("", nil))
	e, ok := AsError(wrapped)
	if !ok || !e.Retryable() {
		t.Fatalf("expected retryable typed error, got %v", wrapped)
	}
	if _, ok := AsError(errors.New("plain")); ok {
		t.Fatalf("plain error must not match")
	}
	if m := NewNotFound("x", nil).ToMap(); m["details"] == nil {
		t.Fatalf("details should default to an empty map")
	}
}
