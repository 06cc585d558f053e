package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/studentpakistan/backend/apps/api/echo"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/services/email"
	"github.com/studentpakistan/backend/services/filestore"
	"github.com/studentpakistan/backend/services/logger"
	"github.com/studentpakistan/backend/storage/database/inmem"
)

const filesURL = "http://test.local/uploads"

var (
	db      *inmemdb.DB
	app     Server
	usrRepo user.Repository
	schRepo school.Repository
	files   *filestore.MemoryStore
	mailSvc *emailsvc.ServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	schRepo = inmemdb.NewSchoolRepository(db)
	stdRepo := inmemdb.NewStudentRepository(db)

	// set up services
	logger := logsvc.NewNopLogger()
	files = filestore.NewMemoryStore(filesURL)
	mailSvc = emailsvc.NewServiceMock()
	usrSvc := user.NewService(usrRepo, mailSvc)
	schSvc := school.NewService(schRepo, usrSvc, files, mailSvc, logger)

	// set up server
	app = NewServer(
		&Options{DisableReqLogs: true},
		&Deps{
			Logger:     logger,
			UserSvc:    usrSvc,
			SchoolSvc:  schSvc,
			StudentSvc: student.NewService(stdRepo, usrSvc, schSvc, files),
			Catalog:    reference.Default(),
		},
	)

	os.Exit(m.Run())
}

// resetDB empties the database and the test doubles.
func resetDB() {
	db.Flush()
	mailSvc.Reset()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

type formFile struct {
	field, filename string
	content         []byte
}

// newMultipartRequest sends `fields` (repeated for lists) and `files` as multipart/form-data.
func newMultipartRequest(t *testing.T, path, token string, fields map[string][]string, uploads ...formFile) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			if err := mw.WriteField(name, v); err != nil {
				t.Fatalf("WriteField() failed: %v", err)
			}
		}
	}
	for _, f := range uploads {
		part, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		if _, err = part.Write(f.content); err != nil {
			t.Fatalf("part.Write() failed: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("mw.Close() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshallObj(%s) failed: %v", data, err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqualValues(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
