package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	pkgerrors "bu-reg/backend/pkg/errors"
)

// ── 内存数据集 ──
// 所有 mock repo 共享一个 mockStore，便于跨实体查询（预加载、计数、子查询）
// 读取方法返回副本，避免并发测试中共享指针

type mockStore struct {
	mu  sync.Mutex
	seq int

	users         map[string]*model.User
	departments   map[string]*model.Department
	courses       map[string]*model.Course
	semesters     map[string]*model.Semester
	registrations map[string]*model.Registration
	uploads       map[string]*model.CourseUpload
	approvals     []model.Approval
	cards         map[string]*model.RegistrationCard
	timetables    map[string]*model.Timetable
	slots         map[string]*model.TimetableSlot
	notifications map[string]*model.Notification

	// cardNumberCollisions 大于 0 时 CreateIfAbsent 模拟卡号唯一索引冲突
	cardNumberCollisions int
}

func newMockStore() *mockStore {
	return &mockStore{
		users:         make(map[string]*model.User),
		departments:   make(map[string]*model.Department),
		courses:       make(map[string]*model.Course),
		semesters:     make(map[string]*model.Semester),
		registrations: make(map[string]*model.Registration),
		uploads:       make(map[string]*model.CourseUpload),
		cards:         make(map[string]*model.RegistrationCard),
		timetables:    make(map[string]*model.Timetable),
		slots:         make(map[string]*model.TimetableSlot),
		notifications: make(map[string]*model.Notification),
	}
}

// newMockRepository 组装 db 为 nil 的 Repository，Transaction 直接执行回调
func newMockRepository(store *mockStore) *repository.Repository {
	return &repository.Repository{
		User:             &mockUserRepo{store},
		Department:       &mockDeptRepo{store},
		Course:           &mockCourseRepo{store},
		Semester:         &mockSemesterRepo{store},
		Registration:     &mockRegistrationRepo{store},
		CourseUpload:     &mockCourseUploadRepo{store},
		Approval:         &mockApprovalRepo{store},
		RegistrationCard: &mockCardRepo{store},
		Timetable:        &mockTimetableRepo{store},
		TimetableSlot:    &mockSlotRepo{store},
		Notification:     &mockNotificationRepo{store},
	}
}

// nextID 调用方需持有锁
func (s *mockStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

// ── 测试数据构造 ──

func (s *mockStore) addUser(id, name, role string, deptID *string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &model.User{
		UserID:       id,
		Name:         name,
		RegNo:        "REG-" + id,
		Email:        id + "@bu.ac.ug",
		Role:         role,
		DepartmentID: deptID,
	}
	s.users[id] = u
	return u
}

func (s *mockStore) addDepartment(id, name, code string) *model.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &model.Department{DepartmentID: id, Name: name, Code: code, IsActive: true}
	s.departments[id] = d
	return d
}

func (s *mockStore) addCourse(id, code string, credits int, deptID string) *model.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.Course{CourseID: id, Code: code, Title: code + " title", Credits: credits, DepartmentID: deptID, IsActive: true}
	c.Version = 1
	s.courses[id] = c
	return c
}

func (s *mockStore) addSemester(id, name string, active bool) *model.Semester {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem := &model.Semester{
		SemesterID: id,
		Name:       name,
		StartDate:  time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC),
		IsActive:   active,
	}
	s.semesters[id] = sem
	return sem
}

func (s *mockStore) cardCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

func (s *mockStore) uploadStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.uploads[id]; ok {
		return u.Status
	}
	return ""
}

func (s *mockStore) registrationStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.registrations[id]; ok {
		return r.Status
	}
	return ""
}

// ── 预加载辅助（调用方持有锁） ──

func (s *mockStore) courseCopy(id string) *model.Course {
	if c, ok := s.courses[id]; ok {
		cp := *c
		if d, ok := s.departments[c.DepartmentID]; ok {
			dc := *d
			cp.Department = &dc
		}
		return &cp
	}
	return nil
}

func (s *mockStore) userCopy(id string) *model.User {
	if u, ok := s.users[id]; ok {
		cp := *u
		if u.DepartmentID != nil {
			if d, ok := s.departments[*u.DepartmentID]; ok {
				dc := *d
				cp.Department = &dc
			}
		}
		return &cp
	}
	return nil
}

func (s *mockStore) semesterCopy(id string) *model.Semester {
	if sem, ok := s.semesters[id]; ok {
		cp := *sem
		return &cp
	}
	return nil
}

func (s *mockStore) uploadCopy(u *model.CourseUpload) model.CourseUpload {
	cp := *u
	cp.Course = s.courseCopy(u.CourseID)
	cp.Student = s.userCopy(u.StudentID)
	cp.Approvals = nil
	for _, a := range s.approvals {
		if a.CourseUploadID == u.CourseUploadID {
			cp.Approvals = append(cp.Approvals, a)
		}
	}
	return cp
}

func (s *mockStore) uploadsWhere(pred func(u *model.CourseUpload) bool) []model.CourseUpload {
	var result []model.CourseUpload
	for _, u := range s.uploads {
		if pred(u) {
			result = append(result, s.uploadCopy(u))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CourseUploadID < result[j].CourseUploadID })
	return result
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ── Mock UserRepository ──

type mockUserRepo struct{ s *mockStore }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.RegNo == user.RegNo || u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = m.s.nextID("user")
	}
	cp := *user
	m.s.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u := m.s.userCopy(id); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByRegNo(_ context.Context, regNo string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, u := range m.s.users {
		if u.RegNo == regNo {
			return m.s.userCopy(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, u := range m.s.users {
		if u.Email == email {
			return m.s.userCopy(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *user
	cp.Department = nil
	m.s.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.User
	for id, u := range m.s.users {
		if filter.DepartmentID != "" && (u.DepartmentID == nil || *u.DepartmentID != filter.DepartmentID) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(u.Name, filter.Keyword) && !strings.Contains(u.RegNo, filter.Keyword) {
			continue
		}
		result = append(result, *m.s.userCopy(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.User
	for _, id := range ids {
		if u := m.s.userCopy(id); u != nil {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) ListIDsByRole(_ context.Context, role string) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []string
	for id, u := range m.s.users {
		if role == "" || u.Role == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockUserRepo) ListStudentsWithoutRegistration(_ context.Context, semesterID string) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	registered := make(map[string]bool)
	for _, r := range m.s.registrations {
		if r.SemesterID == semesterID {
			registered[r.StudentID] = true
		}
	}
	var result []model.User
	for id, u := range m.s.users {
		if u.Role == model.RoleStudent && !registered[id] {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// ── Mock DepartmentRepository ──

type mockDeptRepo struct{ s *mockStore }

func (m *mockDeptRepo) Create(_ context.Context, dept *model.Department) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if dept.DepartmentID == "" {
		dept.DepartmentID = m.s.nextID("dept")
	}
	cp := *dept
	m.s.departments[dept.DepartmentID] = &cp
	return nil
}

func (m *mockDeptRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if d, ok := m.s.departments[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByName(_ context.Context, name string) (*model.Department, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.departments {
		if d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByCode(_ context.Context, code string) (*model.Department, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.departments {
		if strings.EqualFold(d.Code, code) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) list(includeInactive bool) []model.Department {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Department
	for _, d := range m.s.departments {
		if includeInactive || d.IsActive {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (m *mockDeptRepo) List(_ context.Context) ([]model.Department, error) {
	return m.list(false), nil
}

func (m *mockDeptRepo) ListAll(_ context.Context) ([]model.Department, error) {
	return m.list(true), nil
}

func (m *mockDeptRepo) Update(_ context.Context, dept *model.Department) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *dept
	m.s.departments[dept.DepartmentID] = &cp
	return nil
}

func (m *mockDeptRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.departments, id)
	return nil
}

func (m *mockDeptRepo) CountMembers(_ context.Context, departmentID string) (int64, error) {
	counts, _ := m.BatchCountMembers(context.Background(), []string{departmentID})
	return counts[departmentID], nil
}

func (m *mockDeptRepo) CountCourses(_ context.Context, departmentID string) (int64, error) {
	counts, _ := m.BatchCountCourses(context.Background(), []string{departmentID})
	return counts[departmentID], nil
}

func (m *mockDeptRepo) BatchCountMembers(_ context.Context, departmentIDs []string) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := make(map[string]int64)
	for _, id := range departmentIDs {
		for _, u := range m.s.users {
			if u.DepartmentID != nil && *u.DepartmentID == id {
				result[id]++
			}
		}
	}
	return result, nil
}

func (m *mockDeptRepo) BatchCountCourses(_ context.Context, departmentIDs []string) (map[string]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := make(map[string]int64)
	for _, id := range departmentIDs {
		for _, c := range m.s.courses {
			if c.DepartmentID == id {
				result[id]++
			}
		}
	}
	return result, nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct{ s *mockStore }

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.courses {
		if c.Code == course.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	if course.CourseID == "" {
		course.CourseID = m.s.nextID("course")
	}
	if course.Version == 0 {
		course.Version = 1
	}
	cp := *course
	cp.Department = nil
	m.s.courses[course.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c := m.s.courseCopy(id); c != nil {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) GetByCode(_ context.Context, code string) (*model.Course, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, c := range m.s.courses {
		if c.Code == code {
			return m.s.courseCopy(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) List(_ context.Context, filter repository.CourseFilter, offset, limit int) ([]model.Course, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Course
	for id, c := range m.s.courses {
		if !filter.IncludeInactive && !c.IsActive {
			continue
		}
		if filter.DepartmentID != "" && c.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(c.Code, filter.Keyword) && !strings.Contains(c.Title, filter.Keyword) {
			continue
		}
		result = append(result, *m.s.courseCopy(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockCourseRepo) ListByCodes(_ context.Context, codes []string) ([]model.Course, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var result []model.Course
	for id, c := range m.s.courses {
		if want[c.Code] {
			result = append(result, *m.s.courseCopy(id))
		}
	}
	return result, nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *model.Course) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.courses[course.CourseID]
	if !ok || stored.Version != course.Version {
		return pkgerrors.ErrOptimisticLock
	}
	course.Version++
	cp := *course
	cp.Department = nil
	m.s.courses[course.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.courses, id)
	return nil
}

// ── Mock SemesterRepository ──

type mockSemesterRepo struct{ s *mockStore }

func (m *mockSemesterRepo) Create(_ context.Context, semester *model.Semester) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if semester.SemesterID == "" {
		semester.SemesterID = "sem-" + semester.Name
	}
	cp := *semester
	m.s.semesters[semester.SemesterID] = &cp
	return nil
}

func (m *mockSemesterRepo) GetByID(_ context.Context, id string) (*model.Semester, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sem := m.s.semesterCopy(id); sem != nil {
		return sem, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) GetByName(_ context.Context, name string) (*model.Semester, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, sem := range m.s.semesters {
		if sem.Name == name {
			return m.s.semesterCopy(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) GetCurrent(_ context.Context) (*model.Semester, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, sem := range m.s.semesters {
		if sem.IsActive {
			return m.s.semesterCopy(id), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSemesterRepo) List(_ context.Context) ([]model.Semester, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Semester
	for _, sem := range m.s.semesters {
		result = append(result, *sem)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.After(result[j].StartDate) })
	return result, nil
}

func (m *mockSemesterRepo) Update(_ context.Context, semester *model.Semester) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *semester
	m.s.semesters[semester.SemesterID] = &cp
	return nil
}

func (m *mockSemesterRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.semesters, id)
	return nil
}

func (m *mockSemesterRepo) LockAll(_ context.Context) error {
	return nil
}

func (m *mockSemesterRepo) ClearActive(_ context.Context) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sem := range m.s.semesters {
		sem.IsActive = false
	}
	return nil
}

func (m *mockSemesterRepo) SetActive(_ context.Context, id string, active bool, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sem, ok := m.s.semesters[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sem.IsActive = active
	return nil
}

func (m *mockSemesterRepo) CountRegistrations(_ context.Context, id string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, r := range m.s.registrations {
		if r.SemesterID == id {
			n++
		}
	}
	return n, nil
}

// ── Mock RegistrationRepository ──

type mockRegistrationRepo struct{ s *mockStore }

func (m *mockRegistrationRepo) Create(_ context.Context, reg *model.Registration) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.registrations {
		if r.StudentID == reg.StudentID && r.SemesterID == reg.SemesterID {
			return gorm.ErrDuplicatedKey
		}
	}
	if reg.RegistrationID == "" {
		reg.RegistrationID = m.s.nextID("reg")
	}
	if reg.Status == "" {
		reg.Status = model.StatusPending
	}
	cp := *reg
	m.s.registrations[reg.RegistrationID] = &cp
	return nil
}

func (m *mockRegistrationRepo) GetByID(_ context.Context, id string) (*model.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.registrations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	cp.Student = m.s.userCopy(r.StudentID)
	cp.Semester = m.s.semesterCopy(r.SemesterID)
	cp.CourseUploads = m.s.uploadsWhere(func(u *model.CourseUpload) bool { return u.RegistrationID == id })
	return &cp, nil
}

func (m *mockRegistrationRepo) GetByStudentSemester(_ context.Context, studentID, semesterID string) (*model.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.registrations {
		if r.StudentID == studentID && r.SemesterID == semesterID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRegistrationRepo) GetForUpdate(_ context.Context, id string) (*model.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.registrations[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRegistrationRepo) GetOrCreateForUpdate(_ context.Context, studentID, semesterID string) (*model.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.registrations {
		if r.StudentID == studentID && r.SemesterID == semesterID {
			cp := *r
			return &cp, nil
		}
	}
	r := &model.Registration{
		RegistrationID: m.s.nextID("reg"),
		StudentID:      studentID,
		SemesterID:     semesterID,
		Status:         model.StatusPending,
	}
	m.s.registrations[r.RegistrationID] = r
	cp := *r
	return &cp, nil
}

func (m *mockRegistrationRepo) ListByStudent(ctx context.Context, studentID, semesterID string) ([]model.Registration, error) {
	m.s.mu.Lock()
	var ids []string
	for id, r := range m.s.registrations {
		if r.StudentID == studentID && (semesterID == "" || r.SemesterID == semesterID) {
			ids = append(ids, id)
		}
	}
	m.s.mu.Unlock()

	sort.Strings(ids)
	result := make([]model.Registration, 0, len(ids))
	for _, id := range ids {
		r, _ := m.GetByID(ctx, id)
		result = append(result, *r)
	}
	return result, nil
}

func (m *mockRegistrationRepo) List(ctx context.Context, filter repository.RegistrationFilter, offset, limit int) ([]model.Registration, int64, error) {
	m.s.mu.Lock()
	var ids []string
	for id, r := range m.s.registrations {
		if filter.SemesterID != "" && r.SemesterID != filter.SemesterID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != "" {
			u, ok := m.s.users[r.StudentID]
			if !ok || u.DepartmentID == nil || *u.DepartmentID != filter.DepartmentID {
				continue
			}
		}
		ids = append(ids, id)
	}
	m.s.mu.Unlock()

	sort.Strings(ids)
	total := int64(len(ids))
	ids = paginate(ids, offset, limit)
	result := make([]model.Registration, 0, len(ids))
	for _, id := range ids {
		r, _ := m.GetByID(ctx, id)
		result = append(result, *r)
	}
	return result, total, nil
}

func (m *mockRegistrationRepo) UpdateStatus(_ context.Context, id, status string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.registrations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = status
	return nil
}

// Delete 与数据库外键级联一致：同时删除选课明细与注册卡
func (m *mockRegistrationRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.registrations, id)
	for uid, u := range m.s.uploads {
		if u.RegistrationID == id {
			delete(m.s.uploads, uid)
		}
	}
	for cid, c := range m.s.cards {
		if c.RegistrationID == id {
			delete(m.s.cards, cid)
		}
	}
	return nil
}

// ── Mock CourseUploadRepository ──

type mockCourseUploadRepo struct{ s *mockStore }

func (m *mockCourseUploadRepo) Create(_ context.Context, upload *model.CourseUpload) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.uploads {
		if u.StudentID == upload.StudentID && u.CourseID == upload.CourseID && u.SemesterID == upload.SemesterID {
			return gorm.ErrDuplicatedKey
		}
	}
	if upload.CourseUploadID == "" {
		upload.CourseUploadID = m.s.nextID("upload")
	}
	cp := *upload
	cp.Course, cp.Student, cp.Approvals = nil, nil, nil
	m.s.uploads[upload.CourseUploadID] = &cp
	return nil
}

func (m *mockCourseUploadRepo) GetByID(_ context.Context, id string) (*model.CourseUpload, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.uploads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := m.s.uploadCopy(u)
	return &cp, nil
}

func (m *mockCourseUploadRepo) ListByRegistration(_ context.Context, registrationID string) ([]model.CourseUpload, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.uploadsWhere(func(u *model.CourseUpload) bool { return u.RegistrationID == registrationID }), nil
}

func (m *mockCourseUploadRepo) ListByStudentSemester(_ context.Context, studentID, semesterID string) ([]model.CourseUpload, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.uploadsWhere(func(u *model.CourseUpload) bool {
		return u.StudentID == studentID && u.SemesterID == semesterID
	}), nil
}

func (m *mockCourseUploadRepo) CountByCourse(_ context.Context, courseID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, u := range m.s.uploads {
		if u.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (m *mockCourseUploadRepo) List(_ context.Context, filter repository.CourseUploadFilter, offset, limit int) ([]model.CourseUpload, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := m.s.uploadsWhere(func(u *model.CourseUpload) bool {
		return (filter.SemesterID == "" || u.SemesterID == filter.SemesterID) &&
			(filter.Status == "" || u.Status == filter.Status) &&
			(filter.CourseID == "" || u.CourseID == filter.CourseID)
	})
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockCourseUploadRepo) UpdateStatus(_ context.Context, id, status, updatedBy string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.uploads[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Status = status
	u.UpdatedBy = &updatedBy
	return nil
}

func (m *mockCourseUploadRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.uploads, id)
	return nil
}

// ── Mock ApprovalRepository ──

type mockApprovalRepo struct{ s *mockStore }

func (m *mockApprovalRepo) Create(_ context.Context, approval *model.Approval) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if approval.ApprovalID == "" {
		approval.ApprovalID = m.s.nextID("approval")
	}
	m.s.approvals = append(m.s.approvals, *approval)
	return nil
}

func (m *mockApprovalRepo) ListByCourseUpload(_ context.Context, courseUploadID string) ([]model.Approval, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Approval
	for _, a := range m.s.approvals {
		if a.CourseUploadID == courseUploadID {
			result = append(result, a)
		}
	}
	return result, nil
}

// ── Mock RegistrationCardRepository ──

type mockCardRepo struct{ s *mockStore }

// CreateIfAbsent 在锁内模拟 ON CONFLICT (student_id, semester_id) DO NOTHING
func (m *mockCardRepo) CreateIfAbsent(_ context.Context, card *model.RegistrationCard) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.cardNumberCollisions > 0 {
		m.s.cardNumberCollisions--
		return false, gorm.ErrDuplicatedKey
	}
	for _, c := range m.s.cards {
		if c.StudentID == card.StudentID && c.SemesterID == card.SemesterID {
			return false, nil
		}
		if c.CardNumber == card.CardNumber {
			return false, gorm.ErrDuplicatedKey
		}
	}
	if card.CardID == "" {
		card.CardID = m.s.nextID("card")
	}
	cp := *card
	m.s.cards[card.CardID] = &cp
	return true, nil
}

func (m *mockCardRepo) withRelations(c *model.RegistrationCard) *model.RegistrationCard {
	cp := *c
	cp.Student = m.s.userCopy(c.StudentID)
	cp.Semester = m.s.semesterCopy(c.SemesterID)
	return &cp
}

func (m *mockCardRepo) GetByStudentSemester(_ context.Context, studentID, semesterID string) (*model.RegistrationCard, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.cards {
		if c.StudentID == studentID && c.SemesterID == semesterID {
			return m.withRelations(c), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCardRepo) GetByNumber(_ context.Context, cardNumber string) (*model.RegistrationCard, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.cards {
		if c.CardNumber == cardNumber {
			return m.withRelations(c), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCardRepo) ListBySemester(_ context.Context, semesterID string, offset, limit int) ([]model.RegistrationCard, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.RegistrationCard
	for _, c := range m.s.cards {
		if semesterID == "" || c.SemesterID == semesterID {
			result = append(result, *m.withRelations(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CardNumber < result[j].CardNumber })
	return paginate(result, offset, limit), int64(len(result)), nil
}

// ── Mock TimetableRepository ──

type mockTimetableRepo struct{ s *mockStore }

func (m *mockTimetableRepo) Create(_ context.Context, tt *model.Timetable) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if tt.TimetableID == "" {
		tt.TimetableID = m.s.nextID("tt")
	}
	cp := *tt
	m.s.timetables[tt.TimetableID] = &cp
	return nil
}

func (m *mockTimetableRepo) GetByID(_ context.Context, id string) (*model.Timetable, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tt, ok := m.s.timetables[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *tt
	cp.Semester = m.s.semesterCopy(tt.SemesterID)
	return &cp, nil
}

func (m *mockTimetableRepo) LockForUpdate(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.timetables[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (m *mockTimetableRepo) List(_ context.Context, semesterID, departmentID string) ([]model.Timetable, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Timetable
	for _, tt := range m.s.timetables {
		if semesterID != "" && tt.SemesterID != semesterID {
			continue
		}
		if departmentID != "" && (tt.DepartmentID == nil || *tt.DepartmentID != departmentID) {
			continue
		}
		result = append(result, *tt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TimetableID < result[j].TimetableID })
	return result, nil
}

func (m *mockTimetableRepo) Update(_ context.Context, tt *model.Timetable) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *tt
	m.s.timetables[tt.TimetableID] = &cp
	return nil
}

func (m *mockTimetableRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.timetables, id)
	return nil
}

// ── Mock TimetableSlotRepository ──

type mockSlotRepo struct{ s *mockStore }

func (m *mockSlotRepo) slotsWhere(pred func(*model.TimetableSlot) bool) []model.TimetableSlot {
	var result []model.TimetableSlot
	for _, sl := range m.s.slots {
		if pred(sl) {
			cp := *sl
			cp.Course = m.s.courseCopy(sl.CourseID)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result
}

func (m *mockSlotRepo) Create(_ context.Context, slot *model.TimetableSlot) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if slot.SlotID == "" {
		slot.SlotID = m.s.nextID("slot")
	}
	cp := *slot
	cp.Course = nil
	m.s.slots[slot.SlotID] = &cp
	return nil
}

func (m *mockSlotRepo) GetByID(_ context.Context, id string) (*model.TimetableSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sl, ok := m.s.slots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sl
	cp.Course = m.s.courseCopy(sl.CourseID)
	return &cp, nil
}

func (m *mockSlotRepo) ListByTimetable(_ context.Context, timetableID string) ([]model.TimetableSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.slotsWhere(func(sl *model.TimetableSlot) bool { return sl.TimetableID == timetableID }), nil
}

func (m *mockSlotRepo) ListByTimetableDay(_ context.Context, timetableID string, dayOfWeek int) ([]model.TimetableSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.slotsWhere(func(sl *model.TimetableSlot) bool {
		return sl.TimetableID == timetableID && sl.DayOfWeek == dayOfWeek
	}), nil
}

func (m *mockSlotRepo) ListBySemesterCourses(_ context.Context, semesterID string, courseIDs []string) ([]model.TimetableSlot, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		want[id] = true
	}
	return m.slotsWhere(func(sl *model.TimetableSlot) bool {
		tt, ok := m.s.timetables[sl.TimetableID]
		return ok && tt.SemesterID == semesterID && tt.IsPublished && want[sl.CourseID]
	}), nil
}

func (m *mockSlotRepo) Update(_ context.Context, slot *model.TimetableSlot) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *slot
	cp.Course = nil
	m.s.slots[slot.SlotID] = &cp
	return nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.slots, id)
	return nil
}

func (m *mockSlotRepo) DeleteByTimetable(_ context.Context, timetableID string, _ string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, sl := range m.s.slots {
		if sl.TimetableID == timetableID {
			delete(m.s.slots, id)
		}
	}
	return nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct{ s *mockStore }

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if n.NotificationID == "" {
		n.NotificationID = m.s.nextID("notif")
	}
	cp := *n
	m.s.notifications[n.NotificationID] = &cp
	return nil
}

func (m *mockNotificationRepo) BatchCreate(ctx context.Context, ns []model.Notification) error {
	for i := range ns {
		if err := m.Create(ctx, &ns[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockNotificationRepo) GetByID(_ context.Context, id string) (*model.Notification, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if n, ok := m.s.notifications[id]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNotificationRepo) forUser(userID string, unreadOnly bool) []model.Notification {
	var result []model.Notification
	for _, n := range m.s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, *n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NotificationID > result[j].NotificationID })
	return result
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := m.forUser(userID, unreadOnly)
	return paginate(result, offset, limit), int64(len(result)), nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.forUser(userID, true))), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n, ok := m.s.notifications[id]
	if !ok || n.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	n.IsRead = true
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, notif := range m.s.notifications {
		if notif.UserID == userID && !notif.IsRead {
			notif.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) Delete(_ context.Context, id, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n, ok := m.s.notifications[id]
	if !ok || n.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.notifications, id)
	return nil
}

func (s *mockStore) notificationsFor(userID, typ string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Notification
	for _, n := range s.notifications {
		if n.UserID == userID && (typ == "" || n.Type == typ) {
			result = append(result, *n)
		}
	}
	return result
}
