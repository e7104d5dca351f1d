package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"bu-reg/backend/config"
	"bu-reg/backend/internal/api/middleware"
	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/service"
	"bu-reg/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult   *dto.TokenResponse
	loginErr      error
	refreshResult *dto.TokenResponse
	refreshErr    error
	refreshGot    string
	logoutErr     error
	logoutAccess  string
	meResult      *dto.UserDetailResponse
	meErr         error
	changePassErr error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Refresh(_ context.Context, token string) (*dto.TokenResponse, error) {
	m.refreshGot = token
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) Logout(_ context.Context, access, _ string) error {
	m.logoutAccess = access
	return m.logoutErr
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserDetailResponse, error) {
	return m.meResult, m.meErr
}
func (m *mockAuthService) ChangePassword(_ context.Context, _ string, _ *dto.ChangePasswordRequest) error {
	return m.changePassErr
}

// ── Mock RegistrationService ──

type mockRegistrationService struct {
	addResult    *dto.RegistrationResponse
	addErr       error
	addStudentID string
	removeErr    error
	removeRole   string
	reviewResult *dto.ReviewResult
	reviewErr    error
	reviewReq    *dto.ReviewRequest
	cardResult   *dto.RegistrationCardResponse
	cardErr      error
	listResult   []dto.RegistrationResponse
	listTotal    int64
}

func (m *mockRegistrationService) AddCourse(_ context.Context, studentID string, _ *dto.AddCourseRequest) (*dto.RegistrationResponse, error) {
	m.addStudentID = studentID
	return m.addResult, m.addErr
}
func (m *mockRegistrationService) RemoveCourse(_ context.Context, _, role, _ string) error {
	m.removeRole = role
	return m.removeErr
}
func (m *mockRegistrationService) ListMyRegistrations(_ context.Context, _, _ string) ([]dto.RegistrationResponse, error) {
	return m.listResult, nil
}
func (m *mockRegistrationService) GetMyCard(_ context.Context, _, _ string) (*dto.RegistrationCardResponse, error) {
	return m.cardResult, m.cardErr
}
func (m *mockRegistrationService) GetRegistration(_ context.Context, _, _, _ string) (*dto.RegistrationResponse, error) {
	return m.addResult, m.addErr
}
func (m *mockRegistrationService) ListRegistrations(_ context.Context, _ *dto.RegistrationListRequest) ([]dto.RegistrationResponse, int64, error) {
	return m.listResult, m.listTotal, nil
}
func (m *mockRegistrationService) ListCourseUploads(_ context.Context, _ *dto.CourseUploadListRequest) ([]dto.CourseUploadResponse, int64, error) {
	return nil, 0, nil
}
func (m *mockRegistrationService) ReviewCourseUpload(_ context.Context, _, _ string, req *dto.ReviewRequest) (*dto.ReviewResult, error) {
	m.reviewReq = req
	return m.reviewResult, m.reviewErr
}
func (m *mockRegistrationService) ReviewRegistration(_ context.Context, _, _ string, req *dto.ReviewRequest) (*dto.ReviewResult, error) {
	m.reviewReq = req
	return m.reviewResult, m.reviewErr
}
func (m *mockRegistrationService) GetCardByNumber(_ context.Context, _ string) (*dto.RegistrationCardResponse, error) {
	return m.cardResult, m.cardErr
}
func (m *mockRegistrationService) ListCards(_ context.Context, _ string, _ *dto.PaginationRequest) ([]dto.RegistrationCardResponse, int64, error) {
	return nil, 0, nil
}

// ── Mock CourseService ──

type mockCourseService struct {
	updateResult *dto.CourseResponse
	updateErr    error
	parseRows    []service.ImportCourseRow
	parseErr     error
	importResult *dto.ImportResponse
	importedRows int
}

func (m *mockCourseService) Create(_ context.Context, _ *dto.CreateCourseRequest, _ string) (*dto.CourseResponse, error) {
	return m.updateResult, m.updateErr
}
func (m *mockCourseService) GetByID(_ context.Context, _ string) (*dto.CourseResponse, error) {
	return m.updateResult, m.updateErr
}
func (m *mockCourseService) List(_ context.Context, _ *dto.CourseListRequest) ([]dto.CourseResponse, int64, error) {
	return nil, 0, nil
}
func (m *mockCourseService) Update(_ context.Context, _ string, _ *dto.UpdateCourseRequest, _ string) (*dto.CourseResponse, error) {
	return m.updateResult, m.updateErr
}
func (m *mockCourseService) Delete(_ context.Context, _ string, _ string) error {
	return m.updateErr
}
func (m *mockCourseService) ParseImportFile(_ io.Reader) ([]service.ImportCourseRow, error) {
	return m.parseRows, m.parseErr
}
func (m *mockCourseService) ImportCourses(_ context.Context, rows []service.ImportCourseRow, _ string) (*dto.ImportResponse, error) {
	m.importedRows = len(rows)
	return m.importResult, nil
}

// ── Mock TimetableService ──

type mockTimetableService struct {
	slotResult   *dto.SlotResponse
	slotErr      error
	importResult *dto.ImportSlotsResponse
	importErr    error
	importBody   string
}

func (m *mockTimetableService) Create(_ context.Context, _ *dto.CreateTimetableRequest, _ string) (*dto.TimetableResponse, error) {
	return nil, nil
}
func (m *mockTimetableService) GetByID(_ context.Context, _ string) (*dto.TimetableResponse, error) {
	return nil, service.ErrTimetableNotFound
}
func (m *mockTimetableService) List(_ context.Context, _ *dto.TimetableListRequest) ([]dto.TimetableResponse, error) {
	return nil, nil
}
func (m *mockTimetableService) Update(_ context.Context, _ string, _ *dto.UpdateTimetableRequest, _ string) (*dto.TimetableResponse, error) {
	return nil, nil
}
func (m *mockTimetableService) Delete(_ context.Context, _ string, _ string) error {
	return nil
}
func (m *mockTimetableService) CreateSlot(_ context.Context, _ string, _ *dto.CreateSlotRequest, _ string) (*dto.SlotResponse, error) {
	return m.slotResult, m.slotErr
}
func (m *mockTimetableService) UpdateSlot(_ context.Context, _ string, _ *dto.UpdateSlotRequest, _ string) (*dto.SlotResponse, error) {
	return m.slotResult, m.slotErr
}
func (m *mockTimetableService) DeleteSlot(_ context.Context, _ string, _ string) error {
	return m.slotErr
}
func (m *mockTimetableService) ImportICS(_ context.Context, _ string, reader io.Reader, _ string) (*dto.ImportSlotsResponse, error) {
	b, _ := io.ReadAll(reader)
	m.importBody = string(b)
	return m.importResult, m.importErr
}
func (m *mockTimetableService) GetStudentTimetable(_ context.Context, _, _ string) (*dto.StudentTimetableResponse, error) {
	return nil, service.ErrNoActiveSemester
}

// ── Mock NotificationService ──

type mockNotificationService struct {
	unread  int64
	markErr error
}

func (m *mockNotificationService) List(_ context.Context, _ string, _ *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	return []dto.NotificationResponse{}, 0, nil
}
func (m *mockNotificationService) UnreadCount(_ context.Context, _ string) (int64, error) {
	return m.unread, nil
}
func (m *mockNotificationService) MarkRead(_ context.Context, _, _ string) error {
	return m.markErr
}
func (m *mockNotificationService) MarkAllRead(_ context.Context, _ string) (int64, error) {
	return m.unread, nil
}
func (m *mockNotificationService) Delete(_ context.Context, _, _ string) error {
	return m.markErr
}
func (m *mockNotificationService) Notify(_ context.Context, _ *service.NotifyInput) error {
	return nil
}
func (m *mockNotificationService) Broadcast(_ context.Context, _ *dto.BroadcastRequest, _ string) (*dto.BroadcastResponse, error) {
	return &dto.BroadcastResponse{Recipients: 3}, nil
}
func (m *mockNotificationService) Wait() {}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuthAs(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", "test-user-id")
		c.Set("role", role)
		c.Set("department_id", "test-dept-id")
		c.Set("token_jti", "test-jti")
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func multipartFile(t *testing.T, filename, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, wantHTTP, wantCode int) {
	t.Helper()
	if w.Code != wantHTTP {
		t.Errorf("expected %d, got %d (%s)", wantHTTP, w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp.Code != wantCode {
		t.Errorf("expected code %d, got %d", wantCode, resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{
		loginResult: &dto.TokenResponse{
			AccessToken:      "test-access-token",
			RefreshToken:     "test-refresh-token",
			ExpiresIn:        900,
			RefreshExpiresIn: 86400,
		},
	}
	h := NewAuthHandler(mock, &config.CookieConfig{Secure: true, SameSite: "strict"})

	r := gin.New()
	r.POST("/auth/login", h.Login)
	w := serve(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{RegNo: "BU/UG/2026/0001", Password: "Passw0rd!"}))

	assertStatus(t, w, http.StatusOK, 0)

	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			found = true
			if c.Value != "test-refresh-token" || !c.HttpOnly || !c.Secure || c.MaxAge != 86400 {
				t.Errorf("unexpected refresh cookie: %+v", c)
			}
		}
	}
	if !found {
		t.Error("expected refresh_token cookie to be set")
	}
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     io.Reader
		err      error
		wantHTTP int
		wantCode int
	}{
		{"非法 JSON", bytes.NewReader([]byte("invalid json")), nil, http.StatusBadRequest, 10001},
		{"缺少密码", jsonBody(map[string]string{"reg_no": "BU/UG/2026/0001"}), nil, http.StatusBadRequest, 10001},
		{"凭证错误", jsonBody(dto.LoginRequest{RegNo: "x", Password: "y"}), service.ErrInvalidCredentials, http.StatusUnauthorized, 11001},
		{"内部错误", jsonBody(dto.LoginRequest{RegNo: "x", Password: "y"}), errors.New("db down"), http.StatusInternalServerError, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{loginErr: tt.err}, nil)
			r := gin.New()
			r.POST("/auth/login", h.Login)
			assertStatus(t, serve(r, "POST", "/auth/login", tt.body), tt.wantHTTP, tt.wantCode)
		})
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	ok := &dto.TokenResponse{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 900}

	t.Run("请求体", func(t *testing.T) {
		mock := &mockAuthService{refreshResult: ok}
		r := gin.New()
		r.POST("/auth/refresh", NewAuthHandler(mock, nil).RefreshToken)
		w := serve(r, "POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "old-refresh"}))
		assertStatus(t, w, http.StatusOK, 0)
		if mock.refreshGot != "old-refresh" {
			t.Errorf("expected body token, got %q", mock.refreshGot)
		}
	})

	t.Run("Cookie 优先", func(t *testing.T) {
		mock := &mockAuthService{refreshResult: ok}
		r := gin.New()
		r.POST("/auth/refresh", NewAuthHandler(mock, nil).RefreshToken)
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "body-refresh"}))
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "cookie-refresh"})
		r.ServeHTTP(w, req)
		assertStatus(t, w, http.StatusOK, 0)
		if mock.refreshGot != "cookie-refresh" {
			t.Errorf("expected cookie token, got %q", mock.refreshGot)
		}
	})

	t.Run("缺少 Token", func(t *testing.T) {
		r := gin.New()
		r.POST("/auth/refresh", NewAuthHandler(&mockAuthService{}, nil).RefreshToken)
		assertStatus(t, serve(r, "POST", "/auth/refresh", jsonBody(map[string]string{})), http.StatusBadRequest, 10001)
	})

	t.Run("已注销", func(t *testing.T) {
		r := gin.New()
		r.POST("/auth/refresh", NewAuthHandler(&mockAuthService{refreshErr: service.ErrTokenRevoked}, nil).RefreshToken)
		w := serve(r, "POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "old"}))
		assertStatus(t, w, http.StatusUnauthorized, 11003)
	})
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock, nil)

	r := gin.New()
	r.POST("/auth/logout", setAuthAs(model.RoleStudent), h.Logout)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer access-123")
	r.ServeHTTP(w, req)

	assertStatus(t, w, http.StatusOK, 0)
	if mock.logoutAccess != "access-123" {
		t.Errorf("expected access token forwarded, got %q", mock.logoutAccess)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName && c.MaxAge >= 0 {
			t.Error("expected refresh_token cookie to be cleared")
		}
	}
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	mock := &mockAuthService{meResult: &dto.UserDetailResponse{}}
	h := NewAuthHandler(mock, nil)

	r := gin.New()
	r.GET("/auth/me", setAuthAs(model.RoleStudent), h.GetCurrentUser)
	r.GET("/anon/me", h.GetCurrentUser)

	assertStatus(t, serve(r, "GET", "/auth/me", nil), http.StatusOK, 0)
	assertStatus(t, serve(r, "GET", "/anon/me", nil), http.StatusUnauthorized, 10002)
}

func TestAuthHandler_ChangePassword_WrongPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{changePassErr: service.ErrWrongPassword}, nil)

	r := gin.New()
	r.PUT("/auth/password", setAuthAs(model.RoleStudent), h.ChangePassword)
	w := serve(r, "PUT", "/auth/password", jsonBody(dto.ChangePasswordRequest{OldPassword: "Old12345", NewPassword: "New12345"}))
	assertStatus(t, w, http.StatusBadRequest, 11004)
}

// ═══════════════════════════════════════════════════════════
// RegistrationHandler Tests
// ═══════════════════════════════════════════════════════════

const testCourseID = "6f1c1d4e-8a8b-4b0c-9d55-2f0a6f3c9e11"

func TestRegistrationHandler_AddCourse_Success(t *testing.T) {
	mock := &mockRegistrationService{addResult: &dto.RegistrationResponse{ID: "reg-1", Status: model.StatusPending}}
	h := NewRegistrationHandler(mock)

	r := gin.New()
	r.POST("/registrations/courses", setAuthAs(model.RoleStudent), h.AddCourse)
	w := serve(r, "POST", "/registrations/courses", jsonBody(dto.AddCourseRequest{CourseID: testCourseID}))

	assertStatus(t, w, http.StatusCreated, 0)
	if mock.addStudentID != "test-user-id" {
		t.Errorf("expected student id from token, got %q", mock.addStudentID)
	}
}

func TestRegistrationHandler_AddCourse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		err      error
		wantHTTP int
		wantCode int
	}{
		{"course_id 非 UUID", dto.AddCourseRequest{CourseID: "abc"}, nil, http.StatusBadRequest, 10001},
		{"重复选课", dto.AddCourseRequest{CourseID: testCourseID}, service.ErrDuplicateRegistration, http.StatusConflict, 16003},
		{"选课已截止", dto.AddCourseRequest{CourseID: testCourseID}, service.ErrRegistrationClosed, http.StatusBadRequest, 16004},
		{"学分过低", dto.AddCourseRequest{CourseID: testCourseID}, service.ErrCourseCreditsTooLow, http.StatusBadRequest, 16005},
		{"学分超限", dto.AddCourseRequest{CourseID: testCourseID}, service.ErrCreditLimitExceeded, http.StatusBadRequest, 16006},
		{"课程不存在", dto.AddCourseRequest{CourseID: testCourseID}, service.ErrCourseNotFound, http.StatusNotFound, 15001},
		{"无活动学期", dto.AddCourseRequest{CourseID: testCourseID}, service.ErrNoActiveSemester, http.StatusNotFound, 14002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRegistrationHandler(&mockRegistrationService{addErr: tt.err})
			r := gin.New()
			r.POST("/registrations/courses", setAuthAs(model.RoleStudent), h.AddCourse)
			assertStatus(t, serve(r, "POST", "/registrations/courses", jsonBody(tt.body)), tt.wantHTTP, tt.wantCode)
		})
	}
}

func TestRegistrationHandler_RemoveCourse(t *testing.T) {
	mock := &mockRegistrationService{removeErr: service.ErrUploadAlreadyApproved}
	h := NewRegistrationHandler(mock)

	r := gin.New()
	r.DELETE("/registrations/courses/:id", setAuthAs(model.RoleStudent), h.RemoveCourse)
	assertStatus(t, serve(r, "DELETE", "/registrations/courses/up-1", nil), http.StatusBadRequest, 16007)
	if mock.removeRole != model.RoleStudent {
		t.Errorf("expected caller role forwarded, got %q", mock.removeRole)
	}

	mock.removeErr = service.ErrNoPermission
	assertStatus(t, serve(r, "DELETE", "/registrations/courses/up-1", nil), http.StatusForbidden, 10003)
}

func TestRegistrationHandler_ReviewCourseUpload(t *testing.T) {
	mock := &mockRegistrationService{reviewResult: &dto.ReviewResult{
		RegistrationID:     "reg-1",
		RegistrationStatus: model.StatusApproved,
		Card:               &dto.RegistrationCardBrief{CardNumber: "BU2026123456"},
	}}
	h := NewRegistrationHandler(mock)

	r := gin.New()
	r.POST("/course-uploads/:id/review", setAuthAs(model.RoleStaff), h.ReviewCourseUpload)

	w := serve(r, "POST", "/course-uploads/up-1/review", jsonBody(dto.ReviewRequest{Status: "APPROVED", Remarks: "ok"}))
	assertStatus(t, w, http.StatusOK, 0)
	if mock.reviewReq == nil || mock.reviewReq.Remarks != "ok" {
		t.Errorf("expected review request forwarded, got %+v", mock.reviewReq)
	}

	// 非法审批结果被 binding 拦截
	w = serve(r, "POST", "/course-uploads/up-1/review", jsonBody(map[string]string{"status": "MAYBE"}))
	assertStatus(t, w, http.StatusBadRequest, 10001)

	mock.reviewErr = service.ErrUploadAlreadyReviewed
	w = serve(r, "POST", "/course-uploads/up-1/review", jsonBody(dto.ReviewRequest{Status: "REJECTED"}))
	assertStatus(t, w, http.StatusConflict, 16008)
}

func TestRegistrationHandler_ReviewRegistration_NoPending(t *testing.T) {
	h := NewRegistrationHandler(&mockRegistrationService{reviewErr: service.ErrNoPendingUploads})

	r := gin.New()
	r.POST("/registrations/:id/review", setAuthAs(model.RoleRegistrar), h.ReviewRegistration)
	w := serve(r, "POST", "/registrations/reg-1/review", jsonBody(dto.ReviewRequest{Status: "APPROVED"}))
	assertStatus(t, w, http.StatusBadRequest, 16009)
}

func TestRegistrationHandler_Cards(t *testing.T) {
	mock := &mockRegistrationService{cardErr: service.ErrCardNotFound}
	h := NewRegistrationHandler(mock)

	r := gin.New()
	r.GET("/cards/:number", setAuthAs(model.RoleRegistrar), h.GetCardByNumber)
	r.GET("/me/card", setAuthAs(model.RoleStudent), h.GetMyCard)

	assertStatus(t, serve(r, "GET", "/cards/BU2026000000", nil), http.StatusNotFound, 19001)

	mock.cardErr = nil
	mock.cardResult = &dto.RegistrationCardResponse{CardNumber: "BU2026123456"}
	assertStatus(t, serve(r, "GET", "/me/card", nil), http.StatusOK, 0)
}

func TestRegistrationHandler_ListRegistrations_Paginated(t *testing.T) {
	mock := &mockRegistrationService{listResult: []dto.RegistrationResponse{{ID: "reg-1"}}, listTotal: 41}
	h := NewRegistrationHandler(mock)

	r := gin.New()
	r.GET("/registrations", setAuthAs(model.RoleRegistrar), h.ListRegistrations)

	w := serve(r, "GET", "/registrations?page=2&page_size=20&status=PENDING", nil)
	assertStatus(t, w, http.StatusOK, 0)

	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.TotalPages != 3 || body.Data.Pagination.Page != 2 {
		t.Errorf("unexpected pagination: %+v", body.Data.Pagination)
	}

	w = serve(r, "GET", "/registrations?status=UNKNOWN", nil)
	assertStatus(t, w, http.StatusBadRequest, 10001)
}

// ═══════════════════════════════════════════════════════════
// CourseHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCourseHandler_UpdateCourse_Conflict(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{updateErr: service.ErrCourseConflict})

	r := gin.New()
	r.PUT("/courses/:id", setAuthAs(model.RoleRegistrar), h.UpdateCourse)

	w := serve(r, "PUT", "/courses/c-1", jsonBody(map[string]interface{}{"title": "New Title", "version": 1}))
	assertStatus(t, w, http.StatusConflict, 15003)

	// 缺少 version
	w = serve(r, "PUT", "/courses/c-1", jsonBody(map[string]interface{}{"title": "New Title"}))
	assertStatus(t, w, http.StatusBadRequest, 10001)
}

func TestCourseHandler_DeleteCourse_InUse(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{updateErr: service.ErrCourseInUse})

	r := gin.New()
	r.DELETE("/courses/:id", setAuthAs(model.RoleRegistrar), h.DeleteCourse)

	w := serve(r, "DELETE", "/courses/c-1", nil)
	assertStatus(t, w, http.StatusConflict, 15005)
}

func TestCourseHandler_ImportCourses(t *testing.T) {
	mock := &mockCourseService{
		parseRows:    []service.ImportCourseRow{{Row: 2, Code: "CSC201"}, {Row: 3, Code: "CSC202"}},
		importResult: &dto.ImportResponse{Total: 2, Success: 2},
	}
	h := NewCourseHandler(mock)

	r := gin.New()
	r.POST("/courses/import", setAuthAs(model.RoleRegistrar), h.ImportCourses)

	body, contentType := multipartFile(t, "courses.xlsx", "fake-xlsx")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/courses/import", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	assertStatus(t, w, http.StatusOK, 0)
	if mock.importedRows != 2 {
		t.Errorf("expected 2 rows imported, got %d", mock.importedRows)
	}

	// 无文件
	assertStatus(t, serve(r, "POST", "/courses/import", jsonBody(map[string]string{})), http.StatusBadRequest, 10001)

	// 表头错误
	mock.parseErr = service.ErrImportBadHeader
	body, contentType = multipartFile(t, "courses.xlsx", "fake-xlsx")
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/courses/import", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)
	assertStatus(t, w, http.StatusBadRequest, 10007)
}

// ═══════════════════════════════════════════════════════════
// TimetableHandler Tests
// ═══════════════════════════════════════════════════════════

func TestTimetableHandler_CreateSlot(t *testing.T) {
	mock := &mockTimetableService{slotResult: &dto.SlotResponse{ID: "slot-1"}}
	h := NewTimetableHandler(mock)

	r := gin.New()
	r.POST("/timetables/:id/slots", setAuthAs(model.RoleRegistrar), h.CreateSlot)

	req := dto.CreateSlotRequest{CourseID: testCourseID, DayOfWeek: 1, StartTime: "08:00", EndTime: "10:00", Room: "LT1"}
	assertStatus(t, serve(r, "POST", "/timetables/tt-1/slots", jsonBody(req)), http.StatusCreated, 0)

	mock.slotErr = service.ErrSlotOverlap
	assertStatus(t, serve(r, "POST", "/timetables/tt-1/slots", jsonBody(req)), http.StatusConflict, 17003)

	mock.slotErr = service.ErrInvalidTimeRange
	assertStatus(t, serve(r, "POST", "/timetables/tt-1/slots", jsonBody(req)), http.StatusBadRequest, 17004)
}

func TestTimetableHandler_ImportICS_File(t *testing.T) {
	mock := &mockTimetableService{importResult: &dto.ImportSlotsResponse{Total: 1, Created: 1}}
	h := NewTimetableHandler(mock)

	r := gin.New()
	r.POST("/timetables/:id/import", setAuthAs(model.RoleRegistrar), h.ImportICS)

	body, contentType := multipartFile(t, "week.ics", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/timetables/tt-1/import", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	assertStatus(t, w, http.StatusOK, 0)
	if !strings.HasPrefix(mock.importBody, "BEGIN:VCALENDAR") {
		t.Errorf("expected uploaded file forwarded, got %q", mock.importBody)
	}
}

func TestTimetableHandler_ImportICS_URL(t *testing.T) {
	mock := &mockTimetableService{importResult: &dto.ImportSlotsResponse{}}
	h := NewTimetableHandler(mock)
	var fetched string
	h.fetchICS = func(rawURL string) (io.ReadCloser, error) {
		fetched = rawURL
		if strings.Contains(rawURL, "broken") {
			return nil, errors.New("HTTP 404")
		}
		return io.NopCloser(strings.NewReader("ICS-BODY")), nil
	}

	r := gin.New()
	r.POST("/timetables/:id/import", setAuthAs(model.RoleRegistrar), h.ImportICS)

	w := serve(r, "POST", "/timetables/tt-1/import", jsonBody(dto.ImportICSRequest{URL: "webcal://calendar.bu.ac.ug/csc.ics"}))
	assertStatus(t, w, http.StatusOK, 0)
	if fetched != "webcal://calendar.bu.ac.ug/csc.ics" || mock.importBody != "ICS-BODY" {
		t.Errorf("unexpected fetch: url=%q body=%q", fetched, mock.importBody)
	}

	w = serve(r, "POST", "/timetables/tt-1/import", jsonBody(dto.ImportICSRequest{URL: "https://broken.example/x.ics"}))
	assertStatus(t, w, http.StatusBadRequest, 17007)

	w = serve(r, "POST", "/timetables/tt-1/import", jsonBody(map[string]string{}))
	assertStatus(t, w, http.StatusBadRequest, 10001)

	mock.importErr = service.ErrTimetableICSEmpty
	w = serve(r, "POST", "/timetables/tt-1/import", jsonBody(dto.ImportICSRequest{URL: "https://calendar.bu.ac.ug/empty.ics"}))
	assertStatus(t, w, http.StatusBadRequest, 17009)
}

func TestTimetableHandler_NotFoundMappings(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{})

	r := gin.New()
	r.GET("/timetables/me", setAuthAs(model.RoleStudent), h.GetMyTimetable)
	r.GET("/timetables/:id", setAuthAs(model.RoleStudent), h.GetTimetable)

	assertStatus(t, serve(r, "GET", "/timetables/tt-404", nil), http.StatusNotFound, 17001)
	assertStatus(t, serve(r, "GET", "/timetables/me", nil), http.StatusNotFound, 14002)
}

// ═══════════════════════════════════════════════════════════
// NotificationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestNotificationHandler(t *testing.T) {
	mock := &mockNotificationService{unread: 4}
	h := NewNotificationHandler(mock)

	r := gin.New()
	r.GET("/notifications/unread-count", setAuthAs(model.RoleStudent), h.UnreadCount)
	r.PUT("/notifications/:id/read", setAuthAs(model.RoleStudent), h.MarkRead)
	r.POST("/notifications/broadcast", setAuthAs(model.RoleAdmin), h.Broadcast)

	w := serve(r, "GET", "/notifications/unread-count", nil)
	assertStatus(t, w, http.StatusOK, 0)
	var body struct {
		Data dto.UnreadCountResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Unread != 4 {
		t.Errorf("expected unread 4, got %d", body.Data.Unread)
	}

	mock.markErr = service.ErrNotificationNotFound
	assertStatus(t, serve(r, "PUT", "/notifications/n-1/read", nil), http.StatusNotFound, 18001)

	w = serve(r, "POST", "/notifications/broadcast", jsonBody(dto.BroadcastRequest{Role: "student", Title: "Notice", Content: "Exams start Monday"}))
	assertStatus(t, w, http.StatusOK, 0)

	w = serve(r, "POST", "/notifications/broadcast", jsonBody(dto.BroadcastRequest{Role: "janitor", Title: "Notice", Content: "x"}))
	assertStatus(t, w, http.StatusBadRequest, 10001)
}
