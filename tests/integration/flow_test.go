package integration

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

var standardOrder = []string{"full_name", "dob", "address", "aadhaar", "pan", "phone"}

func TestUploadFlow_Success(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	body := ts.upload(t, "passport.jpg")
	if !strings.Contains(body, "Success! 4/6 fields found") {
		t.Fatalf("expected 4/6 success message, got %s", body)
	}

	v := ts.view(t)
	if !v.ResultsVisible || v.SessionID == "" {
		t.Fatalf("expected visible results with a session, got %+v", v)
	}
	if len(v.Fields) != len(standardOrder) {
		t.Fatalf("expected %d fields, got %d", len(standardOrder), len(v.Fields))
	}
	for i, f := range v.Fields {
		if f.Key != standardOrder[i] {
			t.Errorf("field %d: expected %s, got %s", i, standardOrder[i], f.Key)
		}
	}
	if value, filled, _ := fieldByKey(v, "aadhaar"); filled || value != "Not found" {
		t.Errorf("expected aadhaar not found, got %q filled=%v", value, filled)
	}
	if value, filled, _ := fieldByKey(v, "phone"); filled || value != "Not found" {
		t.Errorf("expected null phone not found, got %q filled=%v", value, filled)
	}

	if calls := ts.Backend.Calls(); len(calls) != 1 || calls[0] != "standard" {
		t.Errorf("expected one call with the standard template, got %v", calls)
	}

	count, err := countHistoryRows(ts.DB.Conn())
	if err != nil {
		t.Fatalf("Failed to count history: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 history row, got %d", count)
	}
}

func TestUploadFlow_BackendUnreachable(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.Backend.Server.Close()

	body := ts.upload(t, "passport.jpg")
	if !strings.Contains(body, "Server not running at "+ts.BackendURL) {
		t.Errorf("expected server not running message, got %s", body)
	}

	v := ts.view(t)
	if v.Debug != "" {
		t.Errorf("expected debug untouched, got %q", v.Debug)
	}
	if !v.SubmitEnabled {
		t.Error("expected submit re-enabled")
	}
	if v.SessionID != "" || v.ResultsVisible {
		t.Error("failure must not create a session")
	}
}

func TestUploadFlow_ServiceError(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.Backend.Respond(http.StatusOK, `{"status":"error","message":"Could not read document"}`)

	ts.upload(t, "scan.pdf")
	v := ts.view(t)

	if v.Status == nil || v.Status.Text != "Could not read document" {
		t.Errorf("unexpected status %+v", v.Status)
	}
	if !strings.HasPrefix(v.Debug, "Error: Could not read document\n\nResponse: ") {
		t.Errorf("unexpected debug %q", v.Debug)
	}
}

func TestUploadFlow_RejectsUnsupportedFile(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	body := ts.upload(t, "id.txt")
	if !strings.Contains(body, "Please upload JPG, PNG, or PDF!") {
		t.Errorf("expected unsupported file message, got %s", body)
	}
	if calls := ts.Backend.Calls(); len(calls) != 0 {
		t.Errorf("expected no backend call, got %v", calls)
	}
}

func TestTemplateSwitch_NoNewRequest(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.upload(t, "passport.jpg")
	ts.post(t, "/template", url.Values{"template": {"aadhaar"}})

	v := ts.view(t)
	if v.ActiveTemplate.ID != "aadhaar" || len(v.Fields) != 4 {
		t.Fatalf("unexpected template view %s with %d fields", v.ActiveTemplate.ID, len(v.Fields))
	}
	for _, f := range v.Fields {
		wantFilled := f.Key != "aadhaar"
		if f.Filled != wantFilled {
			t.Errorf("field %s: expected filled=%v", f.Key, wantFilled)
		}
	}
	if calls := ts.Backend.Calls(); len(calls) != 1 {
		t.Errorf("template switch issued a backend call: %v", calls)
	}
}

func TestReset_AfterSuccess(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.upload(t, "passport.jpg")
	ts.post(t, "/reset", url.Values{})

	v := ts.view(t)
	if v.SessionID != "" || v.ResultsVisible {
		t.Errorf("expected cleared session, got %+v", v)
	}
	for _, f := range v.Fields {
		if f.Value != "Not processed" {
			t.Errorf("field %s: expected Not processed, got %q", f.Key, f.Value)
		}
	}
}

func TestDownload_Flow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	resp, body := ts.post(t, "/download", url.Values{})
	if !strings.Contains(body, "No results to download!") || resp.Header.Get("HX-Trigger") != "" {
		t.Fatalf("expected rejection before any upload, got %s", body)
	}

	ts.upload(t, "passport.jpg")
	ts.post(t, "/template", url.Values{"template": {"pan"}})
	sessionID := ts.view(t).SessionID

	resp, _ = ts.post(t, "/download", url.Values{})
	var trigger map[string]map[string]string
	if err := json.Unmarshal([]byte(resp.Header.Get("HX-Trigger")), &trigger); err != nil {
		t.Fatalf("invalid HX-Trigger: %v", err)
	}

	resp, body = ts.get(t, trigger["formfill:download"]["url"])
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from proxy, got %d", resp.StatusCode)
	}
	if body != "%PDF "+sessionID+" pan" {
		t.Errorf("unexpected artifact %q", body)
	}
}

func TestHistory_PerBrowser(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	ts.upload(t, "passport.jpg")
	ts.upload(t, "id.txt")

	_, body := ts.get(t, "/api/history")
	var records []struct {
		Outcome  string `json:"outcome"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Outcome != "unsupported_file_type" || records[1].Outcome != "success" {
		t.Errorf("expected newest first, got %+v", records)
	}
}
