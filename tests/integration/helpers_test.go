package integration

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/formfill/internal/api"
	"github.com/kdimtricp/formfill/internal/database"
	"github.com/kdimtricp/formfill/internal/download"
	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/session"
	"github.com/kdimtricp/formfill/internal/status"
	"github.com/kdimtricp/formfill/internal/storage"
	"github.com/kdimtricp/formfill/internal/templates"
	"github.com/kdimtricp/formfill/internal/upload"
)

// FakeBackend stands in for the extraction service.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	processed []string
	response  string
	status    int
}

func newFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	b := &FakeBackend{
		status: http.StatusOK,
		response: `{"status":"success","filled_form":{"full_name":"ASHA RAO","dob":"1990-01-01",` +
			`"address":"12 MG Road","aadhaar":"","pan":"ABCDE1234F","phone":null},` +
			`"filename":"passport.jpg","language":"en","page_count":1,"template":"standard"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.processed = append(b.processed, r.FormValue("template"))
		status, response := b.status, b.response
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF " + strings.TrimPrefix(r.URL.Path, "/download/") + " " + r.URL.Query().Get("template")))
	})

	b.Server = httptest.NewServer(mux)
	return b
}

func (b *FakeBackend) Respond(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status, b.response = status, body
}

// Calls returns the template id of every /process call.
func (b *FakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.processed...)
}

type TestServer struct {
	Server      *httptest.Server
	Client      *http.Client
	Backend     *FakeBackend
	BackendURL  string
	App         *api.App
	DB          *database.DB
	Storage     storage.Storage
	TempDir     string
	OriginalDir string
}

func setupTestServer(t *testing.T) *TestServer {
	// Change to project root directory to find templates
	originalDir, _ := os.Getwd()
	projectRoot := filepath.Join(originalDir, "../..")
	if err := os.Chdir(projectRoot); err != nil {
		t.Fatalf("Failed to change to project root: %v", err)
	}

	tempDir, err := os.MkdirTemp("", "formfill_test_*")
	if err != nil {
		os.Chdir(originalDir)
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	localStorage, err := storage.NewLocalStorage(filepath.Join(tempDir, "uploads"), 10*1024*1024)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	history := database.NewHistoryRepository(db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := newFakeBackend(t)

	client, err := extraction.NewClient(extraction.Config{BaseURL: backend.Server.URL, Timeout: 5 * time.Second}, logger)
	if err != nil {
		t.Fatalf("Failed to create extraction client: %v", err)
	}

	manager := session.NewManager(templates.NewBuiltinRegistry(), session.Options{Scheduler: &status.ManualScheduler{}}, logger)
	app := &api.App{
		Sessions: manager,
		Uploads: upload.NewController(client, localStorage, history, upload.Config{
			ServiceURL: client.BaseURL(),
			Timeout:    client.Timeout(),
		}, logger),
		Downloads:     download.NewController(api.DownloadPath, logger),
		Artifacts:     client,
		History:       history,
		MaxUploadSize: 10 * 1024 * 1024,
		WebDir:        "web",
		Logger:        logger,
	}

	server := httptest.NewServer(api.NewRouter(app))
	jar, _ := cookiejar.New(nil)

	return &TestServer{
		Server:      server,
		Client:      &http.Client{Jar: jar},
		Backend:     backend,
		BackendURL:  backend.Server.URL,
		App:         app,
		DB:          db,
		Storage:     localStorage,
		TempDir:     tempDir,
		OriginalDir: originalDir,
	}
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.Backend.Server.Close()
	ts.DB.Close()
	os.RemoveAll(ts.TempDir)
	// Return to original directory
	os.Chdir(ts.OriginalDir)
}

func createMultipartUpload(filename string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func (ts *TestServer) upload(t *testing.T, filename string) string {
	t.Helper()

	body, contentType, err := createMultipartUpload(filename, []byte("fake image content"))
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/upload", body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	_, text := ts.send(t, req)
	return text
}

func (ts *TestServer) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.send(t, req)
}

func (ts *TestServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	return ts.send(t, req)
}

func (ts *TestServer) send(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()

	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (ts *TestServer) view(t *testing.T) session.View {
	t.Helper()

	_, body := ts.get(t, "/api/view")
	var v session.View
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("Failed to decode view: %v", err)
	}
	return v
}

func countHistoryRows(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM extraction_history").Scan(&count)
	return count, err
}

func fieldByKey(v session.View, key string) (value string, filled, ok bool) {
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, f.Filled, true
		}
	}
	return "", false, false
}
