package models

import "encoding/xml"

/////////////////////////////////////////////////////////////////////////////
///////////////////////////////// ENTSO-E ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// MarketDocument mirrors the subset of ENTSO-E market documents
// (Publication_MarketDocument, GL_MarketDocument, ...) consumed here.
// Fields are decoded namespace-agnostic so every document flavour shares it.
type MarketDocument struct {
	XMLName    xml.Name
	MRID       string       `xml:"mRID"`
	Type       string       `xml:"type"`
	TimeSeries []TimeSeries `xml:"TimeSeries"`
}

// TimeSeries holds one or more periods of points. Generation documents tag
// the series with a production or PSR type.
type TimeSeries struct {
	MRID           string        `xml:"mRID"`
	BusinessType   string        `xml:"businessType"`
	ProductionType string        `xml:"productionType"`
	PsrTypeDirect  string        `xml:"psrType"`
	PsrTypeNested  string        `xml:"MktPSRType>psrType"`
	TimeInterval   *TimeInterval `xml:"timeInterval"`
	Resolution     string        `xml:"resolution"`
	Periods        []Period      `xml:"Period"`
	Points         []Point       `xml:"Point"`
}

// PsrType returns the PSR type regardless of where the document placed it.
func (ts TimeSeries) PsrType() string {
	if ts.PsrTypeNested != "" {
		return ts.PsrTypeNested
	}
	return ts.PsrTypeDirect
}

// Period anchors a run of points to a UTC start instant and a resolution.
type Period struct {
	TimeInterval *TimeInterval `xml:"timeInterval"`
	Resolution   string        `xml:"resolution"`
	Points       []Point       `xml:"Point"`
}

type TimeInterval struct {
	Start string `xml:"start"`
	End   string `xml:"end"`
}

// Point keeps the raw text of each value; malformed upstream numbers are
// dropped during reconstruction rather than failing the whole document.
type Point struct {
	Position    string `xml:"position"`
	PriceAmount string `xml:"price.amount"`
	Quantity    string `xml:"quantity"`
}
