package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/catalogsync/internal/catalog"
	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/danmuck/catalogsync/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func testAdmin(t *testing.T) (*Admin, *catalog.List) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pitch, err := delta.NewField("pitch", delta.KindInt16)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	label, err := delta.NewField("label", delta.KindString)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	s, err := delta.NewSchema("sound", pitch, label)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	set := descriptor.NewSet("producer")
	if err := set.Register(1, s); err != nil {
		t.Fatalf("register: %v", err)
	}
	m := catalog.NewManager(set, nil)
	l, err := m.CreateList("sounds")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	msg, err := s.New(delta.IntValue(delta.KindInt16, -3), delta.StringValue("step"))
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if _, err := l.Add("step.wav", msg); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.Add("jump.wav", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	a := Appear("catalogctl-test", ":0", nil)
	a.AttachSide("producer", m)
	a.RegisterRoutes()
	return a, l
}

func get(t *testing.T, a *Admin, method, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	a.HTTPRouter().ServeHTTP(rr, req)
	var body map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rr.Code, body
}

func TestHealthAndSides(t *testing.T) {
	testlog.Start(t)
	a, _ := testAdmin(t)
	code, body := get(t, a, http.MethodGet, "/health")
	if code != http.StatusOK || body["status"] != "ok" || body["service"] != "catalogctl-test" {
		t.Fatalf("health: %d %#v", code, body)
	}
	code, body = get(t, a, http.MethodGet, "/sides")
	sides, _ := body["sides"].([]any)
	if code != http.StatusOK || len(sides) != 1 || sides[0] != "producer" {
		t.Fatalf("sides: %d %#v", code, body)
	}
}

func TestListRoutes(t *testing.T) {
	testlog.Start(t)
	a, _ := testAdmin(t)

	code, body := get(t, a, http.MethodGet, "/sides/producer/lists")
	lists, _ := body["lists"].([]any)
	if code != http.StatusOK || len(lists) != 1 {
		t.Fatalf("lists: %d %#v", code, body)
	}
	first := lists[0].(map[string]any)
	if first["name"] != "sounds" || first["entries"] != float64(2) {
		t.Fatalf("list info: %#v", first)
	}

	code, body = get(t, a, http.MethodGet, "/sides/producer/lists/sounds")
	entries, _ := body["entries"].([]any)
	if code != http.StatusOK || len(entries) != 2 {
		t.Fatalf("entries: %d %#v", code, body)
	}
	step := entries[0].(map[string]any)
	payload := step["payload"].(map[string]any)
	fields := payload["fields"].(map[string]any)
	if payload["type"] != "sound" || fields["pitch"] != float64(-3) || fields["label"] != "step" {
		t.Fatalf("payload: %#v", payload)
	}
	if _, ok := entries[1].(map[string]any)["payload"]; ok {
		t.Fatalf("entry without payload should omit it: %#v", entries[1])
	}

	code, body = get(t, a, http.MethodGet, "/sides/producer/lists/sounds/entries/1")
	if code != http.StatusOK || body["value"] != "jump.wav" {
		t.Fatalf("entry: %d %#v", code, body)
	}
}

func TestRouteErrors(t *testing.T) {
	testlog.Start(t)
	a, _ := testAdmin(t)
	cases := []struct {
		path string
		want int
	}{
		{"/sides/consumer/lists", http.StatusNotFound},
		{"/sides/producer/lists/missing", http.StatusNotFound},
		{"/sides/producer/lists/sounds/entries/9", http.StatusNotFound},
		{"/sides/producer/lists/sounds/entries/x", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if code, body := get(t, a, http.MethodGet, tc.path); code != tc.want || body["error"] == nil {
			t.Fatalf("%s: got %d %#v, want %d", tc.path, code, body, tc.want)
		}
	}
}

func TestActionsRunUnderLock(t *testing.T) {
	testlog.Start(t)
	a, l := testAdmin(t)
	a.RegisterAction("grow", func() (string, error) {
		idx, err := l.Add("new.wav", nil)
		if err != nil {
			return "", err
		}
		return l.Entries()[idx].Value(), nil
	})
	a.RegisterAction("fail", func() (string, error) {
		return "", errors.New("boom")
	})

	code, body := get(t, a, http.MethodPost, "/actions/grow")
	if code != http.StatusOK || body["output"] != "new.wav" {
		t.Fatalf("grow: %d %#v", code, body)
	}
	if code, _ := get(t, a, http.MethodPost, "/actions/fail"); code != http.StatusInternalServerError {
		t.Fatalf("fail: %d", code)
	}
	if code, _ := get(t, a, http.MethodPost, "/actions/missing"); code != http.StatusNotFound {
		t.Fatalf("missing: %d", code)
	}
	if _, err := a.ExecuteAction("missing"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestMetricsRoute(t *testing.T) {
	testlog.Start(t)
	a, _ := testAdmin(t)
	get(t, a, http.MethodGet, "/health")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	a.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "catalogsync_http_requests_total") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}
