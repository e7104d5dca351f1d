package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bu-reg/backend/internal/dto"
	"bu-reg/backend/internal/model"
	"bu-reg/backend/internal/repository"
	pkgerrors "bu-reg/backend/pkg/errors"
)

// ── 用户模块业务错误 ──

var (
	ErrUserSelfRoleChange = errors.New("不能修改自己的角色")
	ErrUserSelfDelete     = errors.New("不能删除自己")
	ErrRegNoExists        = errors.New("学号/工号已存在")
	ErrEmailExists        = errors.New("邮箱已被使用")
	ErrNoPermission       = errors.New("无权操作")
)

// UserService 用户业务接口
type UserService interface {
	CreateUser(ctx context.Context, req *dto.CreateUserRequest, callerID string) (*dto.CreateUserResponse, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateUserRequest, callerID, callerRole string) (*dto.UserResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	AssignRole(ctx context.Context, id string, req *dto.AssignRoleRequest, callerID string) error
	ResetPassword(ctx context.Context, id string, callerID string) (*dto.ResetPasswordResponse, error)
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportResponse, error)
}

// ImportUserRow 名册文件中的一行，Row 为 Excel 行号
type ImportUserRow struct {
	Row            int
	Name           string
	RegNo          string
	Email          string
	DepartmentCode string
	Role           string // 为空时默认为 student
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── CreateUser ──────────────────────

// CreateUser 新账号使用默认密码并强制首次登录修改
func (s *userService) CreateUser(ctx context.Context, req *dto.CreateUserRequest, callerID string) (*dto.CreateUserResponse, error) {
	email := normalizeEmail(req.Email)
	if err := s.ensureRegNoFree(ctx, req.RegNo); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	if err := s.requireDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	password := defaultPassword(req.RegNo)
	hash, err := hashPassword(password)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Name:               strings.TrimSpace(req.Name),
		RegNo:              req.RegNo,
		Email:              email,
		PasswordHash:       hash,
		Role:               req.Role,
		DepartmentID:       req.DepartmentID,
		MustChangePassword: true,
	}
	user.CreatedBy = &callerID

	if err := s.repo.User.Create(ctx, user); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrRegNoExists
		}
		s.logger.Error("创建用户失败", zap.String("reg_no", req.RegNo), zap.Error(err))
		return nil, err
	}
	s.logger.Info("用户已创建", zap.String("id", user.UserID), zap.String("role", user.Role), zap.String("by", callerID))

	created, err := s.loadUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.CreateUserResponse{User: toUserResponse(created), TempPassword: password}, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	filter := repository.UserFilter{
		DepartmentID: req.DepartmentID,
		Role:         req.Role,
		Keyword:      req.Keyword,
	}
	users, total, err := s.repo.User.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出用户失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserResponse, len(users))
	for i := range users {
		result[i] = *toUserResponse(&users[i])
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

// Update 管理员可修改任意用户；其他角色只能改自己的姓名和邮箱
func (s *userService) Update(ctx context.Context, id string, req *dto.UpdateUserRequest, callerID, callerRole string) (*dto.UserResponse, error) {
	if callerRole != model.RoleAdmin && (callerID != id || req.DepartmentID != nil) {
		return nil, ErrNoPermission
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if req.DepartmentID != nil {
		if err := s.requireDepartment(ctx, req.DepartmentID); err != nil {
			return nil, err
		}
		user.DepartmentID = req.DepartmentID
	}
	user.UpdatedBy = &callerID

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	updated, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(updated), nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, id string, callerID string) error {
	if id == callerID {
		return ErrUserSelfDelete
	}
	if _, err := s.loadUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.User.Delete(ctx, id, callerID); err != nil {
		s.logger.Error("删除用户失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("用户已删除", zap.String("id", id), zap.String("by", callerID))
	return nil
}

// ────────────────────── AssignRole ──────────────────────

func (s *userService) AssignRole(ctx context.Context, id string, req *dto.AssignRoleRequest, callerID string) error {
	if id == callerID {
		return ErrUserSelfRoleChange
	}
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == req.Role {
		return nil
	}

	previous := user.Role
	user.Role = req.Role
	user.UpdatedBy = &callerID
	if err := s.save(ctx, user); err != nil {
		return err
	}

	s.logger.Info("角色已变更",
		zap.String("user_id", id),
		zap.String("from", previous),
		zap.String("to", req.Role),
		zap.String("by", callerID),
	)
	return nil
}

// ────────────────────── ResetPassword ──────────────────────

// ResetPassword 生成 8 位随机临时密码，仅在响应中返回一次
func (s *userService) ResetPassword(ctx context.Context, id string, callerID string) (*dto.ResetPasswordResponse, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	password, err := generateTempPassword(8)
	if err != nil {
		s.logger.Error("生成临时密码失败", zap.Error(err))
		return nil, err
	}
	if user.PasswordHash, err = hashPassword(password); err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}
	user.MustChangePassword = true
	user.UpdatedBy = &callerID

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("密码已重置", zap.String("user_id", id), zap.String("by", callerID))
	return &dto.ResetPasswordResponse{TempPassword: password}, nil
}

// ────────────────────── 名册导入 ──────────────────────

var (
	userImportColumns = map[string][]string{
		"name":       {"姓名", "name"},
		"reg_no":     {"学号", "工号", "reg_no", "registration number"},
		"email":      {"邮箱", "email"},
		"department": {"院系代码", "department", "department_code"},
	}
	userImportOptional = map[string][]string{
		"role": {"角色", "role"},
	}
)

// ParseImportFile 解析名册 Excel，角色列可选
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	sheet, err := readImportSheet(reader, userImportColumns, userImportOptional)
	if err != nil {
		return nil, err
	}

	rows := make([]ImportUserRow, 0, len(sheet.rows))
	for i, cells := range sheet.rows {
		row := ImportUserRow{
			Row:            i + 2,
			Name:           sheet.cell(cells, "name"),
			RegNo:          sheet.cell(cells, "reg_no"),
			Email:          sheet.cell(cells, "email"),
			DepartmentCode: sheet.cell(cells, "department"),
			Role:           strings.ToLower(sheet.cell(cells, "role")),
		}
		if !isBlankRow(row.Name, row.RegNo, row.Email, row.DepartmentCode) {
			rows = append(rows, row)
		}
	}

	switch {
	case len(rows) == 0:
		return nil, ErrImportNoData
	case len(rows) > maxImportRows:
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// userImportBatch 一次导入的校验上下文，记录文件内已出现的学号与邮箱
type userImportBatch struct {
	departments map[string]*model.Department // 按大写院系代码索引
	regNos      map[string]bool
	emails      map[string]bool
	callerID    string
}

// ImportUsers 先逐行校验并记录失败原因，再在单个事务内写入全部合法行
func (s *userService) ImportUsers(ctx context.Context, rows []ImportUserRow, callerID string) (*dto.ImportResponse, error) {
	depts, err := s.repo.Department.List(ctx)
	if err != nil {
		s.logger.Error("加载院系列表失败", zap.Error(err))
		return nil, err
	}
	batch := &userImportBatch{
		departments: make(map[string]*model.Department, len(depts)),
		regNos:      make(map[string]bool, len(rows)),
		emails:      make(map[string]bool, len(rows)),
		callerID:    callerID,
	}
	for i := range depts {
		batch.departments[normalizeDeptCode(depts[i].Code)] = &depts[i]
	}

	resp := &dto.ImportResponse{Total: len(rows)}
	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		user, reason := s.buildImportUser(ctx, batch, row)
		if reason != "" {
			resp.Failed++
			resp.Errors = append(resp.Errors, dto.ImportError{Row: row.Row, Reason: reason})
			continue
		}
		users = append(users, user)
	}
	if len(users) == 0 {
		return resp, nil
	}

	err = s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		for _, u := range users {
			if err := txRepo.User.Create(ctx, u); err != nil {
				return fmt.Errorf("写入学号 %s 失败: %w", u.RegNo, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("导入用户写入失败，事务回滚", zap.Error(err))
		return nil, err
	}

	resp.Success = len(users)
	s.logger.Info("批量导入用户完成",
		zap.Int("total", resp.Total), zap.Int("success", resp.Success), zap.Int("failed", resp.Failed))
	return resp, nil
}

// buildImportUser 校验单行，失败时返回原因
func (s *userService) buildImportUser(ctx context.Context, batch *userImportBatch, row ImportUserRow) (*model.User, string) {
	email := normalizeEmail(row.Email)
	if row.Name == "" || row.RegNo == "" || email == "" {
		return nil, "必填字段为空"
	}

	role := row.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !isValidRole(role) {
		return nil, fmt.Sprintf("角色无效: %s", row.Role)
	}

	var deptID *string
	if row.DepartmentCode != "" {
		dept, ok := batch.departments[normalizeDeptCode(row.DepartmentCode)]
		if !ok {
			return nil, fmt.Sprintf("院系不存在: %s", row.DepartmentCode)
		}
		deptID = &dept.DepartmentID
	}

	switch {
	case batch.regNos[row.RegNo]:
		return nil, fmt.Sprintf("文件内学号重复: %s", row.RegNo)
	case batch.emails[email]:
		return nil, fmt.Sprintf("文件内邮箱重复: %s", email)
	}
	if _, err := s.repo.User.GetByRegNo(ctx, row.RegNo); err == nil {
		return nil, fmt.Sprintf("学号已存在: %s", row.RegNo)
	}
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Sprintf("邮箱已存在: %s", email)
	}

	hash, err := hashPassword(defaultPassword(row.RegNo))
	if err != nil {
		return nil, "密码哈希失败"
	}

	batch.regNos[row.RegNo] = true
	batch.emails[email] = true

	user := &model.User{
		Name:               row.Name,
		RegNo:              row.RegNo,
		Email:              email,
		PasswordHash:       hash,
		Role:               role,
		DepartmentID:       deptID,
		MustChangePassword: true,
	}
	user.CreatedBy = &batch.callerID
	return user, ""
}

// ── 内部辅助方法 ──

func (s *userService) loadUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
	return nil, err
}

// save 写回用户，预加载的 Department 可能已过期，先行清除
func (s *userService) save(ctx context.Context, user *model.User) error {
	user.Department = nil
	if err := s.repo.User.Update(ctx, user); err != nil {
		if pkgerrors.IsDuplicateKey(err) {
			return ErrEmailExists
		}
		s.logger.Error("更新用户失败", zap.String("id", user.UserID), zap.Error(err))
		return err
	}
	return nil
}

func (s *userService) ensureRegNoFree(ctx context.Context, regNo string) error {
	_, err := s.repo.User.GetByRegNo(ctx, regNo)
	switch {
	case err == nil:
		return ErrRegNoExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// ensureEmailFree selfID 为本人时允许保留原邮箱
func (s *userService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.User.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.UserID != selfID:
		return ErrEmailExists
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// requireDepartment nil 表示不归属院系
func (s *userService) requireDepartment(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	_, err := s.repo.Department.GetByID(ctx, *id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDepartmentNotFound
	}
	return err
}

func toUserResponse(user *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:                 user.UserID,
		Name:               user.Name,
		Email:              user.Email,
		RegNo:              user.RegNo,
		Role:               user.Role,
		MustChangePassword: user.MustChangePassword,
	}
	if d := user.Department; d != nil {
		resp.Department = &dto.DepartmentResponse{ID: d.DepartmentID, Name: d.Name}
	}
	return resp
}

func isValidRole(role string) bool {
	switch role {
	case model.RoleStudent, model.RoleStaff, model.RoleRegistrar, model.RoleAdmin:
		return true
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// defaultPassword "Bu" + 学号后 6 位
func defaultPassword(regNo string) string {
	if len(regNo) > 6 {
		regNo = regNo[len(regNo)-6:]
	}
	return "Bu" + regNo
}

// 临时密码字符集，去掉了易混淆的 0/O、1/l/I
const (
	tempPwdLetters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	tempPwdDigits  = "23456789"
)

// generateTempPassword 至少包含一个字母和一个数字
func generateTempPassword(length int) (string, error) {
	if length < 4 {
		length = 8
	}
	classes := make([]string, length)
	classes[0], classes[1] = tempPwdLetters, tempPwdDigits
	for i := 2; i < length; i++ {
		classes[i] = tempPwdLetters + tempPwdDigits
	}

	pwd := make([]byte, length)
	for i, set := range classes {
		k, err := randIndex(len(set))
		if err != nil {
			return "", err
		}
		pwd[i] = set[k]
	}
	// 打乱位置，字母与数字不固定在开头
	for i := length - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		pwd[i], pwd[j] = pwd[j], pwd[i]
	}
	return string(pwd), nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
