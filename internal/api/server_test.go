package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/advisor"
	"entsoeflow/models"
	"entsoeflow/planner"
)

type fakeService struct {
	loc  *time.Location
	now  time.Time
	err  error
	day  time.Time
	zone string
	opts planner.Options
	pct  int
}

func (f *fakeService) Location() *time.Location { return f.loc }
func (f *fakeService) Frame() planner.Frame     { return planner.NewFrame(f.now, f.loc) }
func (f *fakeService) Options() planner.Options  { return planner.DefaultOptions() }
func (f *fakeService) ThresholdPct() int         { return 50 }

func (f *fakeService) DayAhead(_ context.Context, day time.Time, zone string) (advisor.Prices, error) {
	f.day, f.zone = day, zone
	if f.err != nil {
		return advisor.Prices{}, f.err
	}
	return advisor.Prices{
		Rows:              []models.PriceRow{{Position: 1, HourLocal: "2025-01-02 00:00", EurPerMWh: 100, CtPerKWh: 10, Resolution: "PT60M"}},
		ResolutionMinutes: 60,
	}, nil
}

func (f *fakeService) CheapestBasic(_ context.Context, day time.Time, zone string, n int, _ bool) (models.CheapestHours, error) {
	f.day, f.zone = day, zone
	if f.err != nil {
		return models.CheapestHours{}, f.err
	}
	hours := make([]models.CheapHour, n)
	for i := range hours {
		hours[i] = models.CheapHour{Position: i + 1, IsFuture: true}
	}
	return models.CheapestHours{ResolutionMinutes: 60, Hours: hours, FutureHoursCount: n}, nil
}

func (f *fakeService) CheapestAdvanced(_ context.Context, day time.Time, zone string, opts planner.Options, pct int) (planner.Advanced, error) {
	f.day, f.zone, f.opts, f.pct = day, zone, opts, pct
	if f.err != nil {
		return planner.Advanced{}, f.err
	}
	return planner.Advanced{
		Report:        models.DayReport{Date: day.Format(models.DateLayout), TimeBlocks: []models.TimeBlock{}, ResolutionMinutes: 60},
		Threshold:     12.5,
		AnalyzedSlots: 12,
		TotalSlots:    24,
	}, nil
}

func (f *fakeService) Plan(_ context.Context, day time.Time, zone string) (models.AutomationPlan, error) {
	f.day, f.zone = day, zone
	if f.err != nil {
		return models.AutomationPlan{}, f.err
	}
	return models.AutomationPlan{Date: day.Format(models.DateLayout), Zone: zone, CheapestHoursPositions: []int{2, 3}, RecommendedHoursPositions: []int{3}}, nil
}

func newTestServer(t *testing.T, svc *fakeService, hub *Hub) *Server {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	svc.loc = loc
	svc.now = time.Date(2025, 1, 1, 12, 0, 0, 0, loc)
	s, err := NewServer(appconfig.Default(), svc, func() bool { return true }, hub)
	if err != nil || s == nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.cleanup)
	return s
}

func get(t *testing.T, s *Server, target string, header ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s: decode body %q: %v", target, rec.Body.String(), err)
	}
	return rec, body
}

func TestNewServerDisabled(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Server.Enabled = false
	s, err := NewServer(cfg, &fakeService{}, nil, nil)
	if err != nil || s != nil {
		t.Fatalf("expected nil server, got %v %v", s, err)
	}
	if s.Address() != "" {
		t.Fatalf("nil server must have no address")
	}
}

func TestAddress(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)
	if got := s.Address(); got != "0.0.0.0:8000" {
		t.Fatalf("address = %s", got)
	}
	s.config.Server.Host = "*"
	s.config.Server.Port = 9090
	if got := s.Address(); got != "0.0.0.0:9090" {
		t.Fatalf("address = %s", got)
	}
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, &fakeService{}, NewHub())

	rec, body := get(t, s, "/")
	if rec.Code != http.StatusOK || body["service"] != serviceName || body["version"] != "1.0.0" {
		t.Fatalf("unexpected root %d %v", rec.Code, body)
	}
	endpoints := body["endpoints"].(map[string]interface{})
	if endpoints["health"] != "/system/health" || endpoints["live"] != "/ws" {
		t.Fatalf("unexpected endpoints %v", endpoints)
	}

	rec, body = get(t, s, "/system/health")
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["entsoe_api_key_loaded"] != true {
		t.Fatalf("unexpected health %d %v", rec.Code, body)
	}
	if body["current_time_nl"] != "2025-01-01T12:00:00+01:00" || body["log_level"] != "INFO" || body["websocket_clients"] != float64(0) {
		t.Fatalf("unexpected health %v", body)
	}
}

func TestDayAheadDefaultsToTomorrow(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	rec, body := get(t, s, "/energy/prices/dayahead")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	if svc.day.Format(models.DateLayout) != "2025-01-02" || svc.zone != appconfig.ZoneNL {
		t.Fatalf("fetched %v %s", svc.day, svc.zone)
	}
	if body["date"] != "2025-01-02" || body["total_slots"] != float64(1) || body["resolution_minutes"] != float64(60) {
		t.Fatalf("unexpected body %v", body)
	}
	meta := body["metadata"].(map[string]interface{})
	if meta["endpoint"] != "energy/prices/dayahead" || meta["timezone"] != "Europe/Amsterdam" {
		t.Fatalf("unexpected metadata %v", meta)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestCheapestBasicDefaultsToToday(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	rec, body := get(t, s, "/energy/prices/cheapest-basic?hours=3&consecutive=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	if body["date"] != "2025-01-01" || body["label"] != "Today" || body["hours_requested"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
	if body["consecutive_required"] != true || body["hours_found"] != float64(3) || body["future_hours_count"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
	if hours := body["cheapest_hours"].([]interface{}); len(hours) != 3 {
		t.Fatalf("cheapest_hours = %v", hours)
	}
}

func TestCheapestAdvancedParameters(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)

	rec, body := get(t, s, "/energy/prices/cheapest-advanced?date=2025-01-02&zone=10YBE----------2&max_blocks=3&max_time_gap=90&max_price_gap=0.5&price_threshold_pct=40")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %v", rec.Code, body)
	}
	want := planner.Options{MaxBlocks: 3, MaxTimeGapMinutes: 90, MaxPriceGap: 0.5}
	if svc.opts != want || svc.pct != 40 || svc.zone != "10YBE----------2" {
		t.Fatalf("passed %+v %d %s", svc.opts, svc.pct, svc.zone)
	}
	if body["label"] != "Tomorrow" || body["price_threshold_ct_per_kwh"] != 12.5 || body["date"] != "2025-01-02" {
		t.Fatalf("unexpected body %v", body)
	}
	cfg := body["config"].(map[string]interface{})
	if cfg["analyzed_slots_count"] != float64(12) || cfg["total_slots_in_day"] != float64(24) || cfg["max_price_gap_ct"] != 0.5 {
		t.Fatalf("unexpected config %v", cfg)
	}
	meta := body["metadata"].(map[string]interface{})
	if meta["endpoint"] != "energy/prices/cheapest" {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)
	cases := []struct {
		target  string
		code    string
		message string
	}{
		{"/energy/prices/dayahead?date=02-01-2025", models.CodeInvalidDateFormat,
			"Invalid date format '02-01-2025'. Please use YYYY-MM-DD format (e.g., 2023-10-28)"},
		{"/energy/prices/dayahead?date=2025-01-09", models.CodeValidation,
			"Date 2025-01-09 is too far in the future (maximum: 2025-01-08)"},
		{"/energy/prices/dayahead?date=2023-12-31", models.CodeValidation,
			"Date 2023-12-31 is too far in the past (minimum: 2024-01-02)"},
		{"/energy/prices/dayahead?zone=NL", models.CodeValidation,
			"Invalid EIC zone code 'NL'. Must be 16 characters long"},
		{"/energy/prices/dayahead?zone=YYNL----------L1", models.CodeValidation,
			"Invalid EIC zone code 'YYNL----------L1'. Must start with 2 digits"},
		{"/energy/prices/cheapest-basic?hours=25", models.CodeValidation,
			"Query parameter 'hours' must be between 1 and 24"},
		{"/energy/prices/cheapest-basic?consecutive=maybe", models.CodeValidation,
			"Query parameter 'consecutive' must be a boolean, got 'maybe'"},
		{"/energy/prices/cheapest-advanced?max_price_gap=0.1", models.CodeValidation,
			"Query parameter 'max_price_gap' must be between 0.3 and 10.0"},
		{"/energy/prices/cheapest-advanced?max_time_gap=abc", models.CodeValidation,
			"Query parameter 'max_time_gap' must be an integer, got 'abc'"},
		{"/energy/prices/cheapest-advanced?date=2025-01-02&max_price_gap=NaN", models.CodeValidation,
			"Query parameter 'max_price_gap' must be a number, got 'NaN'"},
		{"/energy/prices/cheapest-advanced?date=2025-01-02&max_price_gap=Inf", models.CodeValidation,
			"Query parameter 'max_price_gap' must be a number, got 'Inf'"},
		{"/energy/prices/cheapest-advanced?max_price_gap=-Infinity", models.CodeValidation,
			"Query parameter 'max_price_gap' must be a number, got '-Infinity'"},
	}
	for _, tc := range cases {
		rec, body := get(t, s, tc.target)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status %d", tc.target, rec.Code)
			continue
		}
		if body["error"] != models.CodeValidation || body["code"] != tc.code || body["message"] != tc.message {
			t.Errorf("%s: unexpected body %v", tc.target, body)
		}
		if body["error_id"] == "" || body["timestamp"] == "" {
			t.Errorf("%s: missing error id or timestamp", tc.target)
		}
	}
}

func TestUpstreamErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		label  string
	}{
		{models.NewNotFound("No price data available for 2025-01-01", nil), http.StatusNotFound, models.CodeNotFound},
		{models.NewServerError("503 Server Error: busy", 502, nil), http.StatusBadGateway, "ENTSO-E API error"},
		{models.NewUnauthorized("", map[string]interface{}{"http_status": 401}), http.StatusUnauthorized, models.CodeUnauthorized},
		{context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		s := newTestServer(t, &fakeService{err: tc.err}, nil)
		rec, body := get(t, s, "/energy/prices/cheapest-basic", "X-Request-ID", "req-42")
		if rec.Code != tc.status || body["error"] != tc.label || body["message"] != tc.err.Error() {
			t.Errorf("%v: unexpected %d %v", tc.err, rec.Code, body)
		}
		if body["error_id"] != "req-42" || rec.Header().Get("X-Request-ID") != "req-42" {
			t.Errorf("%v: request id not propagated: %v", tc.err, body)
		}
	}
}

func TestPlanEndpoint(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, nil)
	rec, body := get(t, s, "/energy/plan?date=2025-01-03")
	if rec.Code != http.StatusOK || body["date"] != "2025-01-03" || body["zone"] != appconfig.ZoneNL {
		t.Fatalf("unexpected plan %d %v", rec.Code, body)
	}
	if positions := body["recommended_hours_positions"].([]interface{}); len(positions) != 1 {
		t.Fatalf("unexpected positions %v", positions)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)
	rec, body := get(t, s, "/energy/nothing")
	if rec.Code != http.StatusNotFound || body["code"] != models.CodeNotFound {
		t.Fatalf("unexpected %d %v", rec.Code, body)
	}
}

func TestHubReplaysLatestReport(t *testing.T) {
	hub := NewHub()
	s := newTestServer(t, &fakeService{}, hub)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()
	defer hub.Close()

	report := models.ZoneReport{Zone: appconfig.ZoneNL, Date: "2025-01-02", Label: "Tomorrow"}
	if err := hub.PublishReport(context.Background(), report); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got models.ZoneReport
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Zone != report.Zone || got.Label != "Tomorrow" {
		t.Fatalf("unexpected report %+v", got)
	}

	next := models.ZoneReport{Zone: appconfig.ZoneNL, Date: "2025-01-02", Label: "Today"}
	if err := hub.PublishReport(context.Background(), next); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := conn.ReadJSON(&got); err != nil || got.Label != "Today" {
		t.Fatalf("expected live report, got %+v %v", got, err)
	}
}
